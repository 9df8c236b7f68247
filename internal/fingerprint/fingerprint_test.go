package fingerprint

import "testing"

func baseInput() Input {
	return Input{
		Commit:              "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
		Flake:               "#host",
		ConfigurationSubdir: "hosts/m1",
		FullInstall:         false,
		Files: []FileInput{
			{Path: "etc/a.conf", Content: []byte("a")},
			{Path: "etc/b.conf", Content: []byte("b")},
		},
	}
}

func TestCompute_Deterministic(t *testing.T) {
	a := Compute(baseInput())
	b := Compute(baseInput())
	if a != b {
		t.Fatalf("expected equal fingerprints for identical input, got %s != %s", a, b)
	}
}

func TestCompute_OrderIndependent(t *testing.T) {
	in := baseInput()
	reordered := baseInput()
	reordered.Files = []FileInput{in.Files[1], in.Files[0]}

	if Compute(in) != Compute(reordered) {
		t.Fatal("expected fingerprint to be independent of additionalFiles ordering")
	}
}

func TestCompute_ContentChangeChangesHash(t *testing.T) {
	in := baseInput()
	changed := baseInput()
	changed.Files[0].Content = []byte("a-modified")

	if Compute(in) == Compute(changed) {
		t.Fatal("expected fingerprint to change when file content changes")
	}
}

func TestCompute_FieldSensitivity(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(in *Input)
	}{
		{"commit", func(in *Input) { in.Commit = "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb" }},
		{"flake", func(in *Input) { in.Flake = "#other" }},
		{"subdir", func(in *Input) { in.ConfigurationSubdir = "hosts/m2" }},
		{"fullInstall", func(in *Input) { in.FullInstall = true }},
		{"path", func(in *Input) { in.Files[0].Path = "etc/z.conf" }},
		{"mode", func(in *Input) { in.Files[0].Mode = 0600 }},
	}

	base := Compute(baseInput())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := baseInput()
			tt.mutate(&in)
			if Compute(in) == base {
				t.Fatalf("expected mutating %s to change the fingerprint", tt.name)
			}
		})
	}
}

func TestCompute_EmptyFilesValid(t *testing.T) {
	in := baseInput()
	in.Files = nil
	if Compute(in) == "" {
		t.Fatal("expected a non-empty fingerprint for empty additionalFiles")
	}
}
