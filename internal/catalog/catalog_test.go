package catalog

import "testing"

func TestNormalize(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"DESARROLLO_MEDIDA", "DESARROLLO_MEDIDA", true},
		{"desarrollo_medida", "DESARROLLO_MEDIDA", true},
		{"Desarrollo de software a medida", "DESARROLLO_MEDIDA", true},
		{"desarrollo de software a medida", "DESARROLLO_MEDIDA", true},
		{"Capacitacion en TI", "CAPACITACION_TI", true},
		{"  Servicios de   ciberseguridad ", "CIBERSEGURIDAD", true},
		{"Ciberseguridad avanzada", "CIBERSEGURIDAD", true},
		{"servicios en la nube", "CLOUD_COMPUTING", true},
		{"hosting", "HOSTING", true},
		{"Consultoría en software", "CONSULTORIA_SOFTWARE", true},
		{"de", "", false},
		{"", "", false},
		{"Diseño gráfico", "", false},
	}
	for _, c := range cases {
		got, ok := Normalize(c.in)
		if got != c.want || ok != c.ok {
			t.Fatalf("Normalize(%q) = %q,%v; want %q,%v", c.in, got, ok, c.want, c.ok)
		}
	}
}

func TestCatalogRoundTrip(t *testing.T) {
	all := All()
	if len(all) != 12 {
		t.Fatalf("expected 12 specialties, got %d", len(all))
	}
	for _, s := range all {
		if code, ok := Normalize(s.Name); !ok || code != s.Code {
			t.Fatalf("name %q resolved to %q", s.Name, code)
		}
		if code, ok := Normalize(s.Code); !ok || code != s.Code {
			t.Fatalf("code %q resolved to %q", s.Code, code)
		}
		if DisplayName(s.Code) != s.Name {
			t.Fatalf("display %q", s.Code)
		}
	}
}

func TestNormalizeOr(t *testing.T) {
	if got := NormalizeOr("Astrología", Fallback); got != Fallback {
		t.Fatalf("expected fallback, got %s", got)
	}
	if got := DisplayName("OTRO"); got != "OTRO" {
		t.Fatalf("unknown values pass through, got %s", got)
	}
}

func TestParseVendorSpecialties(t *testing.T) {
	got := ParseVendorSpecialties(`["HOSTING","Servicios de ciberseguridad","hosting","basura"]`)
	if len(got) != 2 || got[0] != "HOSTING" || got[1] != "CIBERSEGURIDAD" {
		t.Fatalf("json list: %v", got)
	}
	got = ParseVendorSpecialties("CLOUD_COMPUTING, Capacitación en TI")
	if len(got) != 2 || got[0] != "CLOUD_COMPUTING" || got[1] != "CAPACITACION_TI" {
		t.Fatalf("comma list: %v", got)
	}
	got = ParseVendorSpecialties("DESARROLLO_MEDIDA")
	if len(got) != 1 || !Contains(got, "DESARROLLO_MEDIDA") {
		t.Fatalf("single value: %v", got)
	}
	if got := ParseVendorSpecialties(""); len(got) != 0 {
		t.Fatalf("empty: %v", got)
	}
}
