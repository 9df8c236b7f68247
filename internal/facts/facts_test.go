package facts

import (
	"reflect"
	"testing"
)

func TestParse(t *testing.T) {
	input := "os.name=Linux\nos.id=nixos\ncpu.cores=8\n\nmalformed line without equals\ndisk.sda=102400\n"

	got := Parse(input)
	want := map[string]string{
		"os.name":   "Linux",
		"os.id":     "nixos",
		"cpu.cores": "8",
		"disk.sda":  "102400",
	}

	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Parse() = %#v, want %#v", got, want)
	}
}

func TestParse_Empty(t *testing.T) {
	got := Parse("")
	if len(got) != 0 {
		t.Fatalf("expected empty fact map, got %#v", got)
	}
}

func TestParse_ValueContainsEquals(t *testing.T) {
	got := Parse("system.serial=SN=ABC123\n")
	if got["system.serial"] != "SN=ABC123" {
		t.Fatalf("unexpected value: %q", got["system.serial"])
	}
}
