package configs

import "testing"

type testStr string

func (testStr) ConfigPath() string {
	return "str"
}

type testMissing int

func (testMissing) ConfigPath() string {
	return "missing"
}

func TestLookup(t *testing.T) {
	loader := NewLoader([]string{"test.cue", "test2.cue"}, testSchema+"missing?: int\n")

	str, ok, err := Lookup[testStr](loader)
	if err != nil {
		t.Fatal(err)
	}
	if !ok || str != "bar" {
		t.Fatalf("got %v %v", str, ok)
	}

	n, ok, err := Lookup[testMissing](loader)
	if err != nil {
		t.Fatal(err)
	}
	if ok || n != 0 {
		t.Fatalf("got %v %v", n, ok)
	}

	_, _, err = Lookup[testStr](NewLoader([]string{"bad.cue"}, testSchema))
	if err == nil {
		t.Fatal("should error")
	}
}
