package loaders

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lexara-six/ingestion/internal/domain"
	"github.com/lexara-six/ingestion/internal/loader"
	"github.com/lexara-six/ingestion/internal/validator"
)

// validLicenseTypes mirrors the reference loader's known-type list, used
// only to log unknown values — an unrecognized license type is not a
// validation failure.
var validLicenseTypes = map[string]bool{
	"Worker": true, "Inspector": true, "Contractor/Supervisor": true,
	"Management Planner": true, "Project Designer": true,
}

// AsbestosLoader emits (Person, Incorporated_In, State) carrying
// professional-license attributes and, when a county is present,
// (Person, Located_In, County) — the license-holder loader contract,
// grounded on the Iowa Asbestos Licenses rerunnable loader.
type AsbestosLoader struct {
	cfg    SourceConfig
	client domain.ProposeFactClient
}

// NewAsbestosLoader constructs an AsbestosLoader.
func NewAsbestosLoader(cfg SourceConfig, client domain.ProposeFactClient) *AsbestosLoader {
	return &AsbestosLoader{cfg: cfg, client: client}
}

func (l *AsbestosLoader) SourceType() string { return l.cfg.SourceType }
func (l *AsbestosLoader) SourceName() string { return l.cfg.SourceName }

func (l *AsbestosLoader) OpenBatches(filePath string, batchSize, startFrom int) (loader.BatchReader, error) {
	return OpenBatches(filePath, batchSize, startFrom)
}

type asbestosRecord struct {
	folderRSN    string
	regNumber    string
	licenseType  string
	fullName     string
	county       string
	issueDate    string
	expireDate   string
}

func (l *AsbestosLoader) ParseRecord(raw map[string]string) (loader.Record, error) {
	f := l.cfg.Fields

	firstName := cleanString(raw, firstPresent(raw, column(f, "first_name", "First Name"), "first_name"))
	lastName := cleanString(raw, firstPresent(raw, column(f, "last_name", "Last Name"), "last_name"))
	if firstName == "" || lastName == "" {
		return nil, nil
	}

	rec := asbestosRecord{
		folderRSN:   cleanString(raw, firstPresent(raw, column(f, "folder_rsn", "FolderRSN"), "folderrsn")),
		regNumber:   cleanString(raw, firstPresent(raw, column(f, "registration_number", "Registration Number"), "registration_number")),
		licenseType: cleanString(raw, firstPresent(raw, column(f, "license_type", "License Type"), "license_type")),
		fullName:    strings.ToUpper(firstName + " " + lastName),
		county:      cleanString(raw, firstPresent(raw, column(f, "county", "County"), "county")),
		issueDate:   normalizeDate(cleanString(raw, firstPresent(raw, column(f, "issue_date", "Issue Date"), "issue_date"))),
		expireDate:  normalizeDate(cleanString(raw, firstPresent(raw, column(f, "expire_date", "Expire Date"), "expire_date"))),
	}
	return loader.Record{"record": rec}, nil
}

// firstPresent returns key if it names a column in raw, else falls back to
// alt. CSV exports and the JSON API use different header casing for the
// same field.
func firstPresent(raw map[string]string, key, alt string) string {
	if _, ok := raw[key]; ok {
		return key
	}
	return alt
}

// normalizeDate converts an ISO-timestamp or MM/DD/YYYY date to YYYY-MM-DD,
// passing through anything else unchanged (matching the reference loader's
// best-effort parse-or-keep-original behavior).
func normalizeDate(value string) string {
	if value == "" {
		return ""
	}
	if idx := strings.Index(value, "T"); idx >= 0 {
		return value[:idx]
	}
	if strings.Contains(value, "/") {
		parts := strings.Split(value, "/")
		if len(parts) == 3 {
			month, day, year := parts[0], parts[1], parts[2]
			if len(month) == 1 {
				month = "0" + month
			}
			if len(day) == 1 {
				day = "0" + day
			}
			return fmt.Sprintf("%s-%s-%s", year, month, day)
		}
	}
	return value
}

func (l *AsbestosLoader) ValidateRecord(rec loader.Record) []string {
	r := rec["record"].(asbestosRecord)
	var errs []string
	errs = append(errs, validator.ValidateName(r.fullName)...)
	if r.licenseType == "" {
		errs = append(errs, "missing license type")
	}
	errs = append(errs, validator.ValidateDate(r.issueDate, "issue_date")...)
	errs = append(errs, validator.ValidateDate(r.expireDate, "expire_date")...)
	return errs
}

func (l *AsbestosLoader) ProcessRecord(ctx domain.Context, rec loader.Record) ([]domain.ProposeFactResponse, error) {
	r := rec["record"].(asbestosRecord)
	if r.licenseType != "" && !validLicenseTypes[r.licenseType] {
		slog.Warn("unknown asbestos license type", slog.String("license_type", r.licenseType))
	}

	var results []domain.ProposeFactResponse

	personResult, err := l.proposeLicensedPerson(ctx, r)
	if err != nil {
		return nil, err
	}
	results = append(results, personResult)

	if personResult.Success && r.county != "" {
		countyResult, err := l.proposeCounty(ctx, r)
		if err != nil {
			return nil, err
		}
		results = append(results, countyResult)
	}

	return results, nil
}

func (l *AsbestosLoader) proposeLicensedPerson(ctx domain.Context, r asbestosRecord) (domain.ProposeFactResponse, error) {
	attrs := map[string]string{
		"asbestos_license_type":        r.licenseType,
		"asbestos_registration_number": r.regNumber,
		"license_status":                "Active",
		"professional_license":          "Iowa Asbestos License",
	}
	if r.issueDate != "" {
		attrs["license_issue_date"] = r.issueDate
	}
	if r.expireDate != "" {
		attrs["license_expire_date"] = r.expireDate
	}
	if r.folderRSN != "" {
		attrs["iowa_folder_rsn"] = r.folderRSN
	}

	req := domain.ProposeFactRequest{
		SourceType:           string(domain.NodePerson),
		SourceName:           r.fullName,
		TargetType:           string(domain.NodeState),
		TargetName:           "Iowa",
		Relationship:         string(domain.RelIncorporatedIn),
		SourceInfoName:       l.cfg.SourceName,
		SourceInfoType:       l.cfg.SourceType,
		SourceAttributes:     attrs,
		RelationshipStrength: 0.95,
		RelationshipMetadata: map[string]any{
			"license_type":        "Asbestos",
			"license_category":    r.licenseType,
			"registration_number": r.regNumber,
		},
		ProvenanceConfidence: 0.95,
	}
	if t, err := parseDate(r.issueDate); err == nil {
		req.RelationshipValidFrom = &t
	}
	if t, err := parseDate(r.expireDate); err == nil {
		req.RelationshipValidTo = &t
	}

	result, err := l.client.ProposeFact(ctx, req)
	if err != nil {
		return domain.ProposeFactResponse{}, fmt.Errorf("op=loaders.asbestos.process_record.person: %w", err)
	}
	return result, nil
}

func (l *AsbestosLoader) proposeCounty(ctx domain.Context, r asbestosRecord) (domain.ProposeFactResponse, error) {
	countyName := r.county
	if !strings.HasSuffix(countyName, "County") {
		countyName = countyName + " County"
	}

	result, err := l.client.ProposeFact(ctx, domain.ProposeFactRequest{
		SourceType:           string(domain.NodePerson),
		SourceName:           r.fullName,
		TargetType:           string(domain.NodeCounty),
		TargetName:           countyName,
		Relationship:         string(domain.RelLocatedIn),
		SourceInfoName:       l.cfg.SourceName,
		SourceInfoType:       l.cfg.SourceType,
		RelationshipStrength: 0.85,
		RelationshipMetadata: map[string]any{
			"location_type": "business_county",
			"source_field":  "county",
		},
		ProvenanceConfidence: 0.95,
	})
	if err != nil {
		return domain.ProposeFactResponse{}, fmt.Errorf("op=loaders.asbestos.process_record.county: %w", err)
	}
	return result, nil
}
