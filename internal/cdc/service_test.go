package cdc

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stealthcompany.com/firecdc/internal/identity"
	"stealthcompany.com/firecdc/internal/store"
)

func newTestService() *Service {
	return New(store.NewMemory())
}

func decodeRecords(t *testing.T, raw string) []Record {
	t.Helper()
	var records []Record
	require.NoError(t, json.Unmarshal([]byte(raw), &records))
	return records
}

func builtinLoad(records []Record) *Load {
	return &Load{
		Records:  records,
		Identity: &identity.Spec{Builtin: identity.BuiltinFHIRPatient},
	}
}

func TestCreateGeneratesUniqueIDs(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	seen := make(map[string]bool)
	for i := 0; i < 10; i++ {
		result, err := svc.Create(ctx, "unit", nil)
		require.NoError(t, err)
		assert.Regexp(t, `^unit-`, result.CdcID)
		assert.False(t, seen[result.CdcID], "duplicate id %s", result.CdcID)
		seen[result.CdcID] = true

		exists, err := svc.Exists(ctx, result.CdcID)
		require.NoError(t, err)
		assert.True(t, exists)
	}
}

func TestCreateExhaustsRetryBudget(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()
	svc.newSuffix = func() string { return "collide" }

	_, err := svc.Create(ctx, "unit", nil)
	require.NoError(t, err)

	// Every subsequent attempt generates the same id ten times over.
	_, err = svc.Create(ctx, "unit", nil)
	assert.ErrorIs(t, err, ErrIDExhausted)
}

func TestCreatePrefixValidation(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	for _, prefix := range []string{"", "ab", "waytoolongprefix", "bad-id", "sp ace"} {
		t.Run(fmt.Sprintf("prefix %q", prefix), func(t *testing.T) {
			_, err := svc.Create(ctx, prefix, nil)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, "prefix", verr.Field)
		})
	}
}

func TestCreateLoadValidation(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	_, err := svc.Create(ctx, "unit", &Load{})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "load", verr.Field)

	_, err = svc.Create(ctx, "unit", &Load{Records: []Record{}})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "load", verr.Field)

	_, err = svc.Create(ctx, "unit", &Load{
		Records:  []Record{},
		Identity: &identity.Spec{Builtin: "bogus"},
	})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "load", verr.Field)
}

func TestCreateReportsBadRecordIndices(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	records := decodeRecords(t, `[
	  {"patientId":"112345","classifier":"patient","revId":0,"doc":{"body":"ok"}},
	  {"patientId":"212345","classifier":"patient","revId":"zero","doc":{"body":"string revId"}},
	  {"patientId":"312345","classifier":"patient","revId":1,"doc":{"body":"ok"},"extraKey":"tolerated"},
	  {"patientId":412345,"classifier":"patient","revId":0,"doc":{"body":"numeric patientId"}},
	  {"patientId":"512345","classifier":"encounter","revId":2}
	]`)

	result, err := svc.Create(ctx, "unit", builtinLoad(records))
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3, 4}, result.BadIndices)
	assert.Equal(t, 2, result.Inserted)

	// The malformed records are not visible through queries.
	list, err := svc.ListPatients(ctx, result.CdcID)
	require.NoError(t, err)
	subjects := make([]string, 0, len(list))
	for _, entry := range list {
		subjects = append(subjects, entry.Subject)
	}
	assert.ElementsMatch(t, []string{"112345", "312345"}, subjects)
}

func TestBadRecordsErrorText(t *testing.T) {
	err := &BadRecordsError{Indices: []int{1, 3, 4}}
	assert.Equal(t, "invalid load records 1,3,4", err.Error())
}

func TestValidateRecord(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want bool
	}{
		{"well formed", `{"patientId":"1","classifier":"patient","revId":0,"doc":{}}`, true},
		{"extra fields tolerated", `{"ver":"1.0","patientId":"1","classifier":"patient","revId":3,"doc":{},"junk":["a"]}`, true},
		{"missing doc", `{"patientId":"1","classifier":"patient","revId":0}`, false},
		{"missing patientId", `{"classifier":"patient","revId":0,"doc":{}}`, false},
		{"numeric classifier", `{"patientId":"1","classifier":2,"revId":0,"doc":{}}`, false},
		{"string revId", `{"patientId":"1","classifier":"patient","revId":"0","doc":{}}`, false},
		{"negative revId", `{"patientId":"1","classifier":"patient","revId":-1,"doc":{}}`, false},
		{"fractional revId", `{"patientId":"1","classifier":"patient","revId":1.5,"doc":{}}`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var rec Record
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &rec))
			assert.Equal(t, tt.want, validateRecord(rec))
		})
	}
}

func TestListPatientsUnknownCollection(t *testing.T) {
	svc := newTestService()
	_, err := svc.ListPatients(context.Background(), "nope-123")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListPatientsEmptyCollection(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	result, err := svc.Create(ctx, "unit", nil)
	require.NoError(t, err)

	list, err := svc.ListPatients(ctx, result.CdcID)
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)
}

func TestListPatientsAppliesIdentity(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	records := decodeRecords(t, `[
	  {"patientId":"654321","classifier":"patient","revId":0,"doc":{
	    "Patient":{
	      "identifier":[{"key":{"value":"654321"}}],
	      "name":[{"family":[{"value":"Lefton"}],"given":[{"value":"Kyle"}]}],
	      "gender":{"coding":[{"code":{"value":"M"}}]}
	    }
	  }},
	  {"patientId":"112345","classifier":"patient","revId":0,"doc":{"body":"no wrapper key"}}
	]`)

	result, err := svc.Create(ctx, "unit", builtinLoad(records))
	require.NoError(t, err)

	list, err := svc.ListPatients(ctx, result.CdcID)
	require.NoError(t, err)
	require.Len(t, list, 2)

	bysubject := map[string]identity.Identity{}
	for _, entry := range list {
		bysubject[entry.Subject] = entry.Desc
	}
	assert.Equal(t, identity.Identity{MRN: "654321", FullName: "Kyle Lefton", Gender: "M"}, bysubject["654321"])
	assert.Equal(t, identity.Identity{MRN: "?", FullName: "?", Gender: "?"}, bysubject["112345"])
}

func TestSummarizeGroupsByClassifier(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	records := decodeRecords(t, `[
	  {"patientId":"112345","classifier":"patient","revId":0,"doc":{"body":"desc"}},
	  {"patientId":"112345","classifier":"encounter","revId":2,"doc":{"body":"encounters"}},
	  {"patientId":"112345","classifier":"condition","revId":1,"doc":{"body":"conditions"}},
	  {"patientId":"112345","classifier":"medication","revId":3,"doc":{"body":"medications"}},
	  {"patientId":"212345","classifier":"patient","revId":0,"doc":{"body":"other patient"}}
	]`)

	result, err := svc.Create(ctx, "unit", builtinLoad(records))
	require.NoError(t, err)

	summary, err := svc.Summarize(ctx, result.CdcID, "112345")
	require.NoError(t, err)
	require.True(t, summary.HasPatient())

	require.NotNil(t, summary.Encounters)
	require.NotNil(t, summary.Conditions)
	require.NotNil(t, summary.Medications)
	assert.Equal(t, "2", summary.Encounters.Revision)
	assert.Equal(t, "112345", summary.Encounters.Subject)
	assert.Equal(t, map[string]interface{}{"body": "encounters"}, summary.Encounters.Doc)
}

func TestSummarizeUnknownCollection(t *testing.T) {
	svc := newTestService()
	_, err := svc.Summarize(context.Background(), "nope-123", "112345")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSummarizeSubjectWithoutPatientSlot(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	records := decodeRecords(t, `[
	  {"patientId":"112345","classifier":"encounter","revId":0,"doc":{"body":"encounters only"}}
	]`)
	result, err := svc.Create(ctx, "unit", builtinLoad(records))
	require.NoError(t, err)

	summary, err := svc.Summarize(ctx, result.CdcID, "112345")
	require.NoError(t, err)
	assert.False(t, summary.HasPatient())
}

func TestReplaceOptimisticConcurrency(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	records := decodeRecords(t, `[
	  {"patientId":"112345","classifier":"encounter","revId":2,"doc":{"body":"v2"}}
	]`)
	result, err := svc.Create(ctx, "unit", builtinLoad(records))
	require.NoError(t, err)

	updated, err := svc.Replace(ctx, result.CdcID, "112345", "encounter", 2, map[string]interface{}{"body": "v3"})
	require.NoError(t, err)
	assert.Equal(t, 3, updated.RevID)

	// Same revision again is stale.
	_, err = svc.Replace(ctx, result.CdcID, "112345", "encounter", 2, map[string]interface{}{"body": "late"})
	assert.ErrorIs(t, err, ErrNotFound)

	// Only rev+1 succeeds.
	updated, err = svc.Replace(ctx, result.CdcID, "112345", "encounter", 3, map[string]interface{}{"body": "v4"})
	require.NoError(t, err)
	assert.Equal(t, 4, updated.RevID)

	summary, err := svc.Summarize(ctx, result.CdcID, "112345")
	require.NoError(t, err)
	require.NotNil(t, summary.Encounters)
	assert.Equal(t, "4", summary.Encounters.Revision)
	assert.Equal(t, map[string]interface{}{"body": "v4"}, summary.Encounters.Doc)
}
