package commands

import (
	"errors"
	"testing"
	"time"

	"github.com/SingularityDigitalTechnologies/singularity-cli/internal/payload"
	"github.com/SingularityDigitalTechnologies/singularity-cli/pkg/endpoint"
)

func mustJobs(t *testing.T, s string) payload.Jobs {
	t.Helper()
	jobs, err := payload.Parse([]byte(s))
	if err != nil {
		t.Fatal(err)
	}
	return jobs
}

func TestBatchCreateOptions_Payload(t *testing.T) {
	o := BatchCreateOptions{Mode: "pythagoras", CPUs: 2, GPUs: 1, Jobs: mustJobs(t, `[{"a": 14, "b": "27"}]`)}
	if err := o.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	got, err := o.Payload()
	if err != nil {
		t.Fatalf("Payload: %v", err)
	}
	want := `{"mode":"pythagoras","jobs":[{"a":14,"b":"27"}],"requisitions":{"cpu":2,"gpu":1}}`
	if got != want {
		t.Errorf("got  %s\nwant %s", got, want)
	}
}

func TestBatchCreateOptions_Validate(t *testing.T) {
	jobs := mustJobs(t, `[{"a": 1}]`)
	tests := map[string]BatchCreateOptions{
		"no mode":       {CPUs: 1, Jobs: jobs},
		"zero cpus":     {Mode: "m", Jobs: jobs},
		"negative gpus": {Mode: "m", CPUs: 1, GPUs: -1, Jobs: jobs},
		"no jobs":       {Mode: "m", CPUs: 1},
	}
	for name, o := range tests {
		t.Run(name, func(t *testing.T) {
			var ve *ValidationError
			if err := o.Validate(); !errors.As(err, &ve) {
				t.Errorf("expected ValidationError, got %v", err)
			}
		})
	}
}

func TestStatusOptions(t *testing.T) {
	id := "0b9c3bb6-7a4e-4c36-9c55-4a3a3c6f1f0e"

	o := StatusOptions{Endpoint: endpoint.BatchInfo}
	if err := o.Validate(); err != nil {
		t.Errorf("no uuid: %v", err)
	}
	if o.Target() != endpoint.BatchInfo {
		t.Errorf("Target without uuid: got %v", o.Target())
	}

	o = StatusOptions{Endpoint: endpoint.JobInfo, UUID: id}
	if err := o.Validate(); err != nil {
		t.Errorf("valid uuid: %v", err)
	}
	if got := o.Target(); got.Path != "/job/"+id || got.Method != "GET" {
		t.Errorf("Target: got %v", got)
	}

	invalid := []StatusOptions{
		{Endpoint: endpoint.JobInfo, UUID: "some-unique-id"},
		{Endpoint: endpoint.JobInfo, Watch: true, Interval: time.Second},
		{Endpoint: endpoint.JobInfo, UUID: id, Watch: true},
	}
	for _, o := range invalid {
		if err := o.Validate(); err == nil {
			t.Errorf("expected error for %+v", o)
		}
	}
}

func TestGenerateKeyOptions(t *testing.T) {
	o := GenerateKeyOptions{Email: "ops@example.com"}
	if err := o.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	got, _ := o.Payload()
	if got != `{"email":"ops@example.com"}` {
		t.Errorf("got %s", got)
	}

	for _, email := range []string{"", "not-an-email", "Ops <ops@example.com>"} {
		if err := (GenerateKeyOptions{Email: email}).Validate(); err == nil {
			t.Errorf("expected error for %q", email)
		}
	}
}

func TestUserAddOptions(t *testing.T) {
	o := UserAddOptions{FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com", UserType: "admin", Password: "pw"}
	if err := o.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	got, _ := o.Payload()
	want := `{"first_name":"Ada","last_name":"Lovelace","email":"ada@example.com","user_type":"admin","password":"pw"}`
	if got != want {
		t.Errorf("got  %s\nwant %s", got, want)
	}

	missing := o
	missing.UserType = ""
	if err := missing.Validate(); err == nil {
		t.Error("expected error for missing user type")
	}
	missing = o
	missing.Password = " "
	if err := missing.Validate(); err == nil {
		t.Error("expected error for blank password")
	}
}

func TestUserAddOptions_ValidateProfile(t *testing.T) {
	o := UserAddOptions{FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com", UserType: "admin"}
	if err := o.ValidateProfile(); err != nil {
		t.Errorf("ValidateProfile without password: %v", err)
	}
	if err := o.Validate(); err == nil {
		t.Error("Validate should still require the password")
	}

	o.FirstName = ""
	var verr *ValidationError
	if err := o.ValidateProfile(); !errors.As(err, &verr) || verr.Field != "--first-name" {
		t.Errorf("expected --first-name validation error, got %v", err)
	}
}

func TestCompanyAndDatasetOptions(t *testing.T) {
	c := CompanyAddOptions{Name: "Acme"}
	if got, _ := c.Payload(); got != `{"name":"Acme"}` {
		t.Errorf("company: got %s", got)
	}
	if err := (CompanyAddOptions{}).Validate(); err == nil {
		t.Error("expected error for empty company name")
	}

	d := DatasetAddOptions{Name: "mnist", PilotCount: 3}
	if got, _ := d.Payload(); got != `{"name":"mnist","pilot_count":3}` {
		t.Errorf("dataset: got %s", got)
	}
	if err := (DatasetAddOptions{Name: "mnist", PilotCount: -1}).Validate(); err == nil {
		t.Error("expected error for negative pilot count")
	}
}
