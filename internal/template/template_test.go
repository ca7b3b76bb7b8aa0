package template_test

import (
	"reflect"
	"testing"

	"upkeep/internal/template"
)

func TestParseWellFormed(t *testing.T) {
	got := template.Parse("## A\n- x\n- y\n\n## B\n- z")
	want := []template.Section{
		{Title: "A", Tasks: []string{"x", "y"}},
		{Title: "B", Tasks: []string{"z"}},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestParseDropsOrphanBullets(t *testing.T) {
	got := template.Parse("- orphan\n## A\n- x")
	want := []template.Section{{Title: "A", Tasks: []string{"x"}}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestParseEmitsEmptyAreas(t *testing.T) {
	got := template.Parse("## Empty\n## Full\n- t")
	if len(got) != 2 {
		t.Fatalf("expected 2 sections, got %d", len(got))
	}
	if got[0].Title != "Empty" || len(got[0].Tasks) != 0 {
		t.Fatalf("expected empty first section, got %+v", got[0])
	}
	if got[1].Title != "Full" || len(got[1].Tasks) != 1 || got[1].Tasks[0] != "t" {
		t.Fatalf("unexpected second section %+v", got[1])
	}
}

func TestParseVariants(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want []template.Section
	}{
		{
			name: "no headings",
			in:   "just prose\n\nmore prose",
			want: nil,
		},
		{
			name: "empty input",
			in:   "",
			want: nil,
		},
		{
			name: "third level heading and star bullets",
			in:   "### Deep\n* a\n* b",
			want: []template.Section{{Title: "Deep", Tasks: []string{"a", "b"}}},
		},
		{
			name: "blank bullet dropped",
			in:   "## A\n- \n- real",
			want: []template.Section{{Title: "A", Tasks: []string{"real"}}},
		},
		{
			name: "prose between bullets ignored",
			in:   "## A\nsome note\n- x\nanother note\n- y",
			want: []template.Section{{Title: "A", Tasks: []string{"x", "y"}}},
		},
		{
			name: "indented lines trimmed",
			in:   "  ## A\n  - x",
			want: []template.Section{{Title: "A", Tasks: []string{"x"}}},
		},
		{
			name: "trailing area without newline",
			in:   "## A\n- x\n## B",
			want: []template.Section{{Title: "A", Tasks: []string{"x"}}, {Title: "B"}},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := template.Parse(tc.in)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("got %+v, want %+v", got, tc.want)
			}
		})
	}
}
