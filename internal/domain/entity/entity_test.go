package entity

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestRole_Rank(t *testing.T) {
	tests := []struct {
		role Role
		rank int
	}{
		{RoleSalesperson, 0},
		{RoleShiftLead, 1},
		{RoleManager, 2},
		{RoleSeniorManager, 3},
		{RoleAreaManager, 4},
		{RoleAdmin, 5},
		{Role("contractor"), -1},
	}

	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			if got := tt.role.Rank(); got != tt.rank {
				t.Errorf("Rank() = %d, want %d", got, tt.rank)
			}
		})
	}
}

func TestRole_AtLeast(t *testing.T) {
	if !RoleManager.AtLeast(RoleShiftLead) {
		t.Error("manager should outrank shift lead")
	}
	if !RoleManager.AtLeast(RoleManager) {
		t.Error("a role satisfies its own rank")
	}
	if RoleShiftLead.AtLeast(RoleManager) {
		t.Error("shift lead should not outrank manager")
	}
}

func TestLimit_Allows(t *testing.T) {
	bounded := Bounded(decimal.NewFromInt(30))

	tests := []struct {
		name  string
		limit Limit
		value int64
		want  bool
	}{
		{"below cap", bounded, 25, true},
		{"at cap boundary", bounded, 30, true},
		{"above cap", bounded, 31, false},
		{"unlimited small", Unlimited(), 1, true},
		{"unlimited huge", Unlimited(), 1_000_000, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.limit.Allows(decimal.NewFromInt(tt.value)); got != tt.want {
				t.Errorf("Allows(%d) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestLimit_JSONRoundTrip(t *testing.T) {
	ladder := []ApprovalLevel{
		{Role: RoleManager, Cap: Bounded(decimal.NewFromFloat(30.5))},
		{Role: RoleAdmin, Cap: Unlimited()},
	}

	encoded, err := json.Marshal(ladder)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var decoded []ApprovalLevel
	if err := json.Unmarshal(encoded, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	if decoded[1].Cap.IsUnlimited() != true {
		t.Error("unlimited cap lost in round trip")
	}
	max, ok := decoded[0].Cap.Max()
	if !ok || !max.Equal(decimal.NewFromFloat(30.5)) {
		t.Errorf("bounded cap = %v, want 30.5", max)
	}
}

func TestTier_CoversInclusiveBounds(t *testing.T) {
	tier := Tier{
		MinDiscountPercent: decimal.NewFromFloat(10.01),
		MaxDiscountPercent: decimal.NewFromInt(25),
	}

	tests := []struct {
		value float64
		want  bool
	}{
		{10, false},
		{10.01, true},
		{18, true},
		{25, true},
		{25.01, false},
	}

	for _, tt := range tests {
		if got := tier.Covers(decimal.NewFromFloat(tt.value)); got != tt.want {
			t.Errorf("Covers(%v) = %v, want %v", tt.value, got, tt.want)
		}
	}
}

func TestApprovalRequest_TimedOut(t *testing.T) {
	created := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	request := &ApprovalRequest{CreatedAt: created, TimeoutSeconds: 120}

	if request.TimedOut(created.Add(119 * time.Second)) {
		t.Error("timed out one second early")
	}
	if !request.TimedOut(created.Add(120 * time.Second)) {
		t.Error("exact expiry did not time out")
	}

	disabled := &ApprovalRequest{CreatedAt: created, TimeoutSeconds: 0}
	if disabled.TimedOut(created.Add(1000 * time.Hour)) {
		t.Error("request with disabled timeout expired")
	}
}

func TestApprovalRequest_Remaining(t *testing.T) {
	created := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	request := &ApprovalRequest{CreatedAt: created, TimeoutSeconds: 60}

	if got := request.Remaining(created.Add(20 * time.Second)); got != 40*time.Second {
		t.Errorf("Remaining() = %v, want 40s", got)
	}
	if got := request.Remaining(created.Add(2 * time.Minute)); got != 0 {
		t.Errorf("Remaining() = %v after expiry, want 0", got)
	}
}

func TestTimeOfDayWindow_Contains(t *testing.T) {
	day := TimeOfDayWindow{StartMinute: 9 * 60, EndMinute: 17 * 60}
	night := TimeOfDayWindow{StartMinute: 22 * 60, EndMinute: 6 * 60}

	at := func(hour, minute int) time.Time {
		return time.Date(2026, 5, 1, hour, minute, 0, 0, time.UTC)
	}

	tests := []struct {
		name   string
		window TimeOfDayWindow
		t      time.Time
		want   bool
	}{
		{"daytime inside", day, at(12, 0), true},
		{"daytime start boundary", day, at(9, 0), true},
		{"daytime end boundary", day, at(17, 0), true},
		{"daytime outside", day, at(18, 0), false},
		{"overnight before midnight", night, at(23, 30), true},
		{"overnight after midnight", night, at(2, 0), true},
		{"overnight outside", night, at(12, 0), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.window.Contains(tt.t); got != tt.want {
				t.Errorf("Contains() = %v, want %v", got, tt.want)
			}
		})
	}
}
