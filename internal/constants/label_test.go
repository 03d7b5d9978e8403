package constants

import "testing"

func TestLabel_Valid(t *testing.T) {
	tests := []struct {
		name  string
		label Label
		want  bool
	}{
		{
			name:  "strong is valid",
			label: LabelStrong,
			want:  true,
		},
		{
			name:  "follower is valid",
			label: LabelFollower,
			want:  true,
		},
		{
			name:  "unknown is valid",
			label: LabelUnknown,
			want:  true,
		},
		{
			name:  "empty string is invalid",
			label: Label(""),
			want:  false,
		},
		{
			name:  "lowercase strong is invalid",
			label: Label("strong"),
			want:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.label.Valid(); got != tt.want {
				t.Errorf("Label.Valid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGender_Valid(t *testing.T) {
	for _, g := range []Gender{GenderMale, GenderFemale} {
		if !g.Valid() {
			t.Errorf("Gender(%q).Valid() = false, want true", g)
		}
	}
	if Gender("other").Valid() {
		t.Error("Gender(\"other\").Valid() = true, want false")
	}
}

func TestTenGodAt(t *testing.T) {
	want := []string{TenGodSelf, TenGodOutput, TenGodWealth, TenGodOfficer, TenGodResource}
	for offset, name := range want {
		if got := TenGodAt(offset); got != name {
			t.Errorf("TenGodAt(%d) = %q, want %q", offset, got, name)
		}
	}
	if got := TenGodAt(-1); got != TenGodResource {
		t.Errorf("TenGodAt(-1) = %q, want %q", got, TenGodResource)
	}
	if got := TenGodAt(7); got != TenGodWealth {
		t.Errorf("TenGodAt(7) = %q, want %q", got, TenGodWealth)
	}
}

func TestIsTenGod(t *testing.T) {
	for _, g := range TenGods() {
		if !IsTenGod(g) {
			t.Errorf("IsTenGod(%q) = false", g)
		}
	}
	if IsTenGod("spouse") {
		t.Error("IsTenGod(\"spouse\") = true")
	}
}

func TestLabels(t *testing.T) {
	labels := Labels()
	if len(labels) != 6 {
		t.Fatalf("len(Labels()) = %d, want 6", len(labels))
	}
	seen := make(map[Label]bool)
	for _, l := range labels {
		if !l.Valid() {
			t.Errorf("Labels() contains invalid label %q", l)
		}
		if seen[l] {
			t.Errorf("Labels() repeats %q", l)
		}
		seen[l] = true
	}
}
