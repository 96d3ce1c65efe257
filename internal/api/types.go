package api

import (
	"strconv"

	"stealthcompany.com/firecdc/internal/cdc"
)

// protocolVersion is the fire wire protocol version echoed in every
// response.
const protocolVersion = "1.0"

// Error codes of the fire protocol, kept numerically compatible with
// existing clients.
const (
	codeInvalidPrefix    = "01"
	codeCreateFailed     = "02"
	codeUnknownCdc       = "03"
	codeListUnavailable  = "04"
	codeUnknownSubject   = "05"
	codeSummaryFailed    = "06"
	codeInvalidUpdate    = "07"
	codeUpdateFailed     = "08"
	codeInvalidLoad      = "11"
	codeBadLoadRecords   = "12"
)

type errorResponse struct {
	Ver  string `json:"ver"`
	Code string `json:"code"`
	Text string `json:"text"`
}

type listResponse struct {
	Ver   string            `json:"ver"`
	CdcID string            `json:"cdcId"`
	List  []cdc.PatientEntry `json:"list"`
}

type summaryResponse struct {
	Ver        string       `json:"ver"`
	CdcID      string       `json:"cdcId"`
	Classifier string       `json:"classifier"`
	Summary    *cdc.Summary `json:"summary"`
}

type createRequest struct {
	Ver   string    `json:"ver"`
	CdcID string    `json:"cdcId"`
	Load  *cdc.Load `json:"load,omitempty"`
}

type createResponse struct {
	Ver       string `json:"ver"`
	CdcID     string `json:"cdcId"`
	TimeStamp string `json:"timeStamp"`
}

type updateRequest struct {
	Subject  string      `json:"subject"`
	Ver      string      `json:"ver"`
	Revision interface{} `json:"revision"`
	Doc      interface{} `json:"doc"`
}

type updateResponse struct {
	Ver        string `json:"ver"`
	CdcID      string `json:"cdcId"`
	Classifier string `json:"classifier"`
	Subject    string `json:"subject"`
	Revision   string `json:"revision"`
	TimeStamp  string `json:"timeStamp"`
}

// parseRevision accepts the revision as a JSON number or a numeric
// string, matching what existing clients send.
func parseRevision(v interface{}) (int, bool) {
	switch rev := v.(type) {
	case float64:
		if rev != float64(int(rev)) || rev < 0 {
			return 0, false
		}
		return int(rev), true
	case string:
		n, err := strconv.Atoi(rev)
		if err != nil || n < 0 {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// emptyDoc reports a missing or empty document payload.
func emptyDoc(doc interface{}) bool {
	if doc == nil {
		return true
	}
	if m, ok := doc.(map[string]interface{}); ok {
		return len(m) == 0
	}
	return false
}
