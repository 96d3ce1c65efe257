// Package seed holds the embedded demo load set used by cmd/seed to
// bootstrap a sample collection.
package seed

import (
	"encoding/json"
	"fmt"

	"stealthcompany.com/firecdc/internal/cdc"
	"stealthcompany.com/firecdc/internal/identity"
)

// demoRecords is a small record set spanning all four classifiers,
// including the canonical 654321 patient whose FHIR-shaped description
// exercises the default identity strategy end to end.
const demoRecords = `[
  {"ver":"1.0","classifier":"condition","patientId":"112345","revId":1,"doc":{"body":"patient 112345 fhir array of conditions"}},
  {"ver":"1.0","classifier":"encounter","patientId":"112345","revId":2,"doc":{"body":"patient 112345 fhir array of encounters"}},
  {"ver":"1.0","classifier":"patient","patientId":"112345","revId":0,"doc":{"body":"patient 112345 fhir description"}},
  {"ver":"1.0","classifier":"patient","patientId":"212345","revId":0,"doc":{"body":"patient 212345 fhir description"}},
  {"ver":"1.0","classifier":"condition","patientId":"212345","revId":1,"doc":{"body":"patient 212345 fhir array of conditions"}},
  {"ver":"1.2","classifier":"medication","patientId":"0246810","revId":1,"doc":{"body":"patient 0246810 fhir array of medications"}},
  {"ver":"1.0","classifier":"patient","patientId":"654321","revId":0,"nonSchemaKey":"junk","doc":{
    "Patient":{
      "text":{"status":{"value":"generated"},"div":"<div><p>Patient Kyle Lefton, M, May 26 2003. MRN: 654321</p></div>"},
      "identifier":[{"use":{"value":"document retrieval"},"label":{"value":"MRN"},"system":{"value":"urn:oid:1.2.3.4.5"},"key":{"value":"654321"}}],
      "name":[{"family":[{"value":"Lefton"}],"given":[{"value":"Kyle"}]}],
      "gender":{"coding":[{"system":{"value":"http://hl7.org/fhir/v3/AdministrativeGender"},"code":{"value":"M"}}]},
      "birthDate":{"value":"2003-05-26"},
      "address":[{"line":[{"value":"96 Claremount Dr"}],"city":{"value":"Berkeley"},"state":{"value":"CA"},"zip":{"value":"94706"},"country":{"value":"US"}}],
      "active":{"value":true}
    }
  }},
  {"ver":"1.0","classifier":"encounter","patientId":"654321","revId":0,"doc":[{"Encounter":{
    "identifier":[{"use":{"value":"temp"},"label":{"value":"Kyle office visit on February 17, 2012"},"key":{"value":"8080"}}],
    "date":{"value":"2012-02-17"},
    "status":{"value":"complete"},
    "reasonString":{"value":"Sternutation and itchy eyes, wheezing, shortness of breath."}
  }}]},
  {"ver":"1.0","classifier":"condition","patientId":"654321","revId":0,"doc":[{"Condition":{
    "identifier":[{"use":{"value":"temp"},"label":{"value":"Kyle office visit on February 17, 2012"},"key":{"value":"hp5.4.3.1"}}],
    "code":{"coding":[{"system":{"value":"http://snomed.info/id"},"code":{"value":"233678006"},"display":{"value":"Childhood asthma"}}]},
    "status":{"value":"confirmed"},
    "onsetDate":{"value":"2012-02-07"}
  }}]},
  {"ver":"1.0","classifier":"medication","patientId":"654321","revId":0,"doc":{"MedicationPrescription":{
    "identifier":[{"use":{"value":"temp"},"label":{"value":"urn:oid:1.3.6.1.4.1.26580"},"key":{"value":"ms12345"}}],
    "dateWritten":{"value":"2012-04-04"},
    "status":{"value":"active"},
    "medication":{"display":{"value":"Zafirlukast 10mg tablet"}}
  }}}
]`

// Load returns the demo load set with the built-in FHIR patient identity
// strategy attached.
func Load() (*cdc.Load, error) {
	var records []cdc.Record
	if err := json.Unmarshal([]byte(demoRecords), &records); err != nil {
		return nil, fmt.Errorf("decode demo records: %w", err)
	}
	return &cdc.Load{
		Records:  records,
		Identity: &identity.Spec{Builtin: identity.BuiltinFHIRPatient},
	}, nil
}
