package bootstrap

import "testing"

func TestNormalizeAddr(t *testing.T) {
	cases := map[string]string{
		"":      ":8080",
		"9090":  ":9090",
		":7070": ":7070",
		" 81 ":  ":81",
	}
	for input, want := range cases {
		if got := normalizeAddr(input); got != want {
			t.Fatalf("normalizeAddr(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestBuildWorkerRequiresPostgres(t *testing.T) {
	t.Setenv("ENV_FILE", t.TempDir()+"/missing.env")
	t.Setenv("POSTGRES_DSN", "")
	if _, err := BuildWorker(); err == nil {
		t.Fatalf("expected error without POSTGRES_DSN")
	}
}

func TestBuildAPIFallsBackToMemoryStore(t *testing.T) {
	t.Setenv("ENV_FILE", t.TempDir()+"/missing.env")
	t.Setenv("POSTGRES_DSN", "")
	app, err := BuildAPI()
	if err != nil {
		t.Fatalf("build api failed: %v", err)
	}
	defer app.Close()
	if app.relay == nil || app.postgres != nil {
		t.Fatalf("expected in-memory wiring with local relay")
	}
}

func TestBuildAPIRecordsLocalRelayMetrics(t *testing.T) {
	t.Setenv("ENV_FILE", t.TempDir()+"/missing.env")
	t.Setenv("POSTGRES_DSN", "")
	app, err := BuildAPI()
	if err != nil {
		t.Fatalf("build api failed: %v", err)
	}
	defer app.Close()
	if app.relay.Observe == nil {
		t.Fatalf("expected local relay to report into the metrics registry")
	}
}
