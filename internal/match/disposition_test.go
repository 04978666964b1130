package match

import "testing"

func TestExtract_PrefixMarkerWins(t *testing.T) {
	e := NewExtractor("[DISPOSITION]", []string{"NO INTEREST"})

	label, raw := e.Extract("call notes\n[DISPOSITION] FOLLOW-UP\nmore notes")
	if label != "FOLLOW-UP" {
		t.Fatalf("expected prefix extraction, got %q", label)
	}
	if raw == "" {
		t.Fatalf("raw text must be retained")
	}
}

func TestExtract_CatalogScanNormalized(t *testing.T) {
	e := NewExtractor("[DISPOSITION]", []string{"MEETING SCHEDULED", "NO INTEREST"})

	// Diacritics, case and separators must not defeat the scan.
	label, _ := e.Extract("cliente sem interesse — nö ínterest confirmed")
	if label != "NO INTEREST" {
		t.Fatalf("expected normalized catalog match, got %q", label)
	}

	label, _ = e.Extract("meeting   scheduled for friday")
	if label != "MEETING SCHEDULED" {
		t.Fatalf("expected separator-collapsed match, got %q", label)
	}
}

func TestExtract_FirstCatalogEntryWins(t *testing.T) {
	e := NewExtractor("", []string{"FOLLOW-UP", "EMAIL FOLLOW-UP"})
	label, _ := e.Extract("email follow-up sent")
	if label != "FOLLOW-UP" {
		t.Fatalf("catalog order must decide, got %q", label)
	}
}

func TestExtract_NoMatchKeepsRaw(t *testing.T) {
	e := NewExtractor("[DISPOSITION]", []string{"NO INTEREST"})
	label, raw := e.Extract("ordinary note")
	if label != "" {
		t.Fatalf("expected empty label, got %q", label)
	}
	if raw != "ordinary note" {
		t.Fatalf("expected raw retained, got %q", raw)
	}
}

func TestExtract_EmptyText(t *testing.T) {
	e := NewExtractor("[DISPOSITION]", nil)
	if label, raw := e.Extract("   "); label != "" || raw != "" {
		t.Fatalf("expected empty outputs, got %q %q", label, raw)
	}
}

func TestNormalizeLabel(t *testing.T) {
	cases := map[string]string{
		"REUNIÃO AGENDADA":  "REUNIAO_AGENDADA",
		"follow-up":         "FOLLOW_UP",
		"  weird -- text  ": "WEIRD_TEXT",
		"":                  "",
	}
	for in, want := range cases {
		if got := normalizeLabel(in); got != want {
			t.Fatalf("normalizeLabel(%q) = %q, want %q", in, got, want)
		}
	}
}
