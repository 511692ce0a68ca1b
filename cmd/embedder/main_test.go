package main

import "testing"

func TestParseFlags_ProjectIDRepeatable(t *testing.T) {
	opts, err := parseFlags([]string{"--project-id", "p1", "--project-id", "p2"})
	if err != nil {
		t.Fatalf("parseFlags() error: %v", err)
	}
	if len(opts.projectIDs) != 2 || opts.projectIDs[0] != "p1" || opts.projectIDs[1] != "p2" {
		t.Errorf("projectIDs = %v, want [p1 p2]", opts.projectIDs)
	}
}

func TestParseFlags_Defaults(t *testing.T) {
	opts, err := parseFlags(nil)
	if err != nil {
		t.Fatalf("parseFlags() error: %v", err)
	}
	if opts.retryFailed || opts.retrySkipped || opts.repair || opts.reset || opts.skipHNSWIndexes {
		t.Errorf("opts = %+v, want all flags false", opts)
	}
	if opts.timedMinutes != 0 {
		t.Errorf("timedMinutes = %d, want 0", opts.timedMinutes)
	}
}

func TestValidateMode(t *testing.T) {
	tests := []struct {
		name    string
		opts    cliOptions
		wantErr bool
	}{
		{"no flags", cliOptions{}, false},
		{"retry failed alone", cliOptions{retryFailed: true}, false},
		{"retry skipped alone", cliOptions{retrySkipped: true}, false},
		{"repair alone", cliOptions{repair: true}, false},
		{"reset with one project", cliOptions{reset: true, projectIDs: projectIDList{"p1"}}, false},
		{"reset with no project", cliOptions{reset: true}, true},
		{"reset with multiple projects", cliOptions{reset: true, projectIDs: projectIDList{"p1", "p2"}}, true},
		{"retry and repair", cliOptions{retryFailed: true, repair: true}, true},
		{"retry and reset", cliOptions{retrySkipped: true, reset: true, projectIDs: projectIDList{"p1"}}, true},
		{"repair and reset", cliOptions{repair: true, reset: true, projectIDs: projectIDList{"p1"}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateMode(tt.opts)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateMode(%+v) error = %v, wantErr %v", tt.opts, err, tt.wantErr)
			}
		})
	}
}

func TestProjectIDList_String(t *testing.T) {
	p := projectIDList{"a", "b"}
	if got := p.String(); got != "[a b]" {
		t.Errorf("String() = %q, want %q", got, "[a b]")
	}
}
