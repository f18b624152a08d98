package extract

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/korean"
)

// UnknownOrderer is used when a file name does not carry an orderer.
const UnknownOrderer = "알 수 없음"

var (
	// YYYYMMDD_HHMM_<name>a<digit>...
	stlName = regexp.MustCompile(`\d{8}_\d{4}_(.+?)a\d`)

	// "<name>a3참", "<name>a3.5참"
	patientSuffix = regexp.MustCompile(`(?i)a\d+(\.\d+)?.*$`)
)

// RepairHangul recovers Korean text from a name whose EUC-KR bytes were
// decoded as EUC-JP somewhere upstream. The name is returned unchanged when
// it does not round-trip cleanly.
func RepairHangul(name string) string {
	raw, err := japanese.EUCJP.NewEncoder().String(name)
	if err != nil {
		return name
	}
	fixed, err := korean.EUCKR.NewDecoder().String(raw)
	if err != nil || strings.ContainsRune(fixed, utf8.RuneError) || !utf8.ValidString(fixed) {
		return name
	}
	return fixed
}

// OrdererFromStl extracts the orderer from a DWX STL file name.
func OrdererFromStl(filename string) string {
	m := stlName.FindStringSubmatch(filename)
	if m == nil || m[1] == "" {
		return UnknownOrderer
	}
	return normalizeOrderer(RepairHangul(m[1]))
}

// CleanPatientName strips the restoration suffix from an XML patient name.
// The input is returned trimmed when nothing remains.
func CleanPatientName(full string) string {
	full = strings.TrimSpace(full)
	cleaned := strings.TrimSpace(patientSuffix.ReplaceAllString(full, ""))
	if cleaned == "" {
		return normalizeOrderer(full)
	}
	return normalizeOrderer(cleaned)
}
