package builder

import (
	"testing"
)

func yOf(t *testing.T, n *Node) float64 {
	t.Helper()
	y, ok := n.Props.Number("y")
	if !ok {
		t.Fatalf("widget %s has no y", n.ID)
	}
	return y
}

func TestNeedsNormalization(t *testing.T) {
	tests := []struct {
		name    string
		widgets Tree
		want    bool
	}{
		{"empty", Tree{}, false},
		{"none positioned", Tree{leaf("a"), leaf("b")}, true},
		{"auto and blank", Tree{
			{ID: "a", Type: TypeText, Props: Props{"y": "auto"}},
			{ID: "b", Type: TypeText, Props: Props{"y": ""}},
			{ID: "c", Type: TypeText, Props: Props{"y": "top"}},
			{ID: "d", Type: TypeText, Props: nil},
		}, true},
		{"one positioned", Tree{leaf("a"), {ID: "b", Type: TypeText, Props: Props{"y": 0}}}, false},
		{"px string", Tree{{ID: "a", Type: TypeText, Props: Props{"y": "40px"}}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NeedsNormalization(tt.widgets); got != tt.want {
				t.Errorf("NeedsNormalization = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNormalizeSections_StacksByResolvedHeight(t *testing.T) {
	widgets := Tree{
		{ID: "A", Type: TypeHeading, Props: Props{}},
		{ID: "B", Type: TypeText, Props: Props{}},
		{ID: "C", Type: TypeButton, Props: Props{"height": 60}},
	}

	got := NormalizeSections(widgets)
	want := []float64{0, 120, 320}
	for i, n := range got {
		if y := yOf(t, n); y != want[i] {
			t.Errorf("%s.y = %v, want %v", n.ID, y, want[i])
		}
	}
	if _, ok := widgets[0].Props.Number("y"); ok {
		t.Error("input modified")
	}
}

func TestNormalizeSections_LeavesPositionedAlone(t *testing.T) {
	widgets := Tree{leaf("a"), {ID: "b", Type: TypeText, Props: Props{"y": 900}}}
	got := NormalizeSections(widgets)
	if _, ok := got[0].Props.Number("y"); ok {
		t.Error("a partially positioned list should not be normalized")
	}
}

func TestNormalizeSections_Idempotent(t *testing.T) {
	inputs := []Tree{
		{},
		{leaf("a")},
		{leaf("a"), {ID: "s", Type: TypeSection, Props: Props{"y": "auto"}}, {ID: "i", Type: TypeImage, Props: Props{"height": "auto"}}},
		{{ID: "x", Type: TypeAnchor, Props: Props{"height": 0}}, {ID: "y", Type: TypeAnchor, Props: Props{"height": 0}}},
		BuiltInTemplates()[2].Widgets,
	}
	for i, widgets := range inputs {
		once := NormalizeSections(widgets)
		if NeedsNormalization(once) {
			t.Errorf("input %d still needs normalization", i)
		}
		twice := NormalizeSections(once)
		for j := range once {
			if yOf(t, once[j]) != yOf(t, twice[j]) {
				t.Errorf("input %d: second pass moved %s", i, once[j].ID)
			}
		}
	}
}

func TestSortByVerticalPosition(t *testing.T) {
	widgets := Tree{
		{ID: "low", Type: TypeText, Props: Props{"y": 400}},
		{ID: "none", Type: TypeText, Props: Props{}},
		{ID: "top", Type: TypeText, Props: Props{"y": "0px"}},
		{ID: "mid", Type: TypeText, Props: Props{"y": 150}},
		{ID: "mid2", Type: TypeText, Props: Props{"y": 150}},
	}

	got := SortByVerticalPosition(widgets)
	if !equalIDs(got, "none", "top", "mid", "mid2", "low") {
		t.Errorf("order = %v", ids(got))
	}
	if widgets[0].ID != "low" {
		t.Error("input reordered")
	}
}
