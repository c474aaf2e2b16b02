package loaders

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/lexara-six/ingestion/internal/domain"
	"github.com/lexara-six/ingestion/internal/loader"
	"github.com/lexara-six/ingestion/internal/validator"
)

// BusinessLoader emits (Company, Located_At, City) when the head-office city
// and state are present, else (Company, Incorporated_In, State), plus
// (Agent, Registered_Agent, Company) when a registered agent is named, from a
// business-registry export, grounded on the Iowa Business Entities
// rerunnable loader.
type BusinessLoader struct {
	cfg    SourceConfig
	client domain.ProposeFactClient
	geo    *loader.GeoCache
}

// NewBusinessLoader constructs a BusinessLoader. geo may be nil. The loader
// only looks the head-office city up in geo to log a hit; it does not
// preload or store into geo, and every record goes through the propose-fact
// client's own city resolution either way.
func NewBusinessLoader(cfg SourceConfig, client domain.ProposeFactClient, geo *loader.GeoCache) *BusinessLoader {
	return &BusinessLoader{cfg: cfg, client: client, geo: geo}
}

func (l *BusinessLoader) SourceType() string { return l.cfg.SourceType }
func (l *BusinessLoader) SourceName() string { return l.cfg.SourceName }

func (l *BusinessLoader) OpenBatches(filePath string, batchSize, startFrom int) (loader.BatchReader, error) {
	return OpenBatches(filePath, batchSize, startFrom)
}

type businessRecord struct {
	corpNumber     string
	legalName      string
	corpType       string
	effectiveDate  string
	agentName      string
	agentAddress1  string
	agentAddress2  string
	agentCity      string
	agentState     string
	agentZip       string
	hoAddress1     string
	hoAddress2     string
	hoCity         string
	hoState        string
	hoZip          string
}

func (l *BusinessLoader) ParseRecord(raw map[string]string) (loader.Record, error) {
	f := l.cfg.Fields

	legalName := cleanString(raw, column(f, "legal_name", "Legal Name"))
	corpType := cleanString(raw, column(f, "corp_type", "Corporation Type"))
	if legalName == "" || corpType == "" {
		return nil, nil
	}

	rec := businessRecord{
		corpNumber:    cleanString(raw, column(f, "corp_number", "Corp Number")),
		legalName:     legalName,
		corpType:      corpType,
		effectiveDate: cleanString(raw, column(f, "effective_date", "Effective Date")),
		agentName:     cleanString(raw, column(f, "ra_name", "Registered Agent")),
		agentAddress1: cleanString(raw, column(f, "ra_address1", "RA Address 1")),
		agentAddress2: cleanString(raw, column(f, "ra_address2", "RA Address 2")),
		agentCity:     cleanString(raw, column(f, "ra_city", "RA City")),
		agentState:    cleanString(raw, column(f, "ra_state", "RA State")),
		agentZip:      cleanString(raw, column(f, "ra_zip", "RA Zip")),
		hoAddress1:    cleanString(raw, column(f, "ho_address1", "HO Address 1")),
		hoAddress2:    cleanString(raw, column(f, "ho_address2", "HO Address 2")),
		hoCity:        cleanString(raw, column(f, "ho_city", "HO City")),
		hoState:       cleanString(raw, column(f, "ho_state", "HO State")),
		hoZip:         cleanString(raw, column(f, "ho_zip", "HO Zip")),
	}

	return loader.Record{"record": rec}, nil
}

func (l *BusinessLoader) ValidateRecord(rec loader.Record) []string {
	r := rec["record"].(businessRecord)
	var errs []string
	errs = append(errs, validator.ValidateName(r.legalName)...)
	if r.corpType == "" {
		errs = append(errs, "missing corporation type")
	}
	errs = append(errs, validator.ValidateDate(r.effectiveDate, "effective_date")...)
	errs = append(errs, validator.ValidateAddress(validator.Address{City: r.hoCity, State: r.hoState, Zip: r.hoZip})...)
	return errs
}

func (l *BusinessLoader) ProcessRecord(ctx domain.Context, rec loader.Record) ([]domain.ProposeFactResponse, error) {
	r := rec["record"].(businessRecord)
	var results []domain.ProposeFactResponse

	if r.hoCity != "" && r.hoState != "" {
		result, err := l.proposeCompanyInCity(ctx, r)
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	} else {
		result, err := l.client.ProposeFact(ctx, domain.ProposeFactRequest{
			SourceType:           string(domain.NodeCompany),
			SourceName:           r.legalName,
			TargetType:           string(domain.NodeState),
			TargetName:           "Iowa",
			Relationship:         string(domain.RelIncorporatedIn),
			SourceInfoName:       l.cfg.SourceName,
			SourceInfoType:       l.cfg.SourceType,
			SourceAttributes: map[string]string{
				"iowa_business_id": r.corpNumber,
				"iowa_corp_number": r.corpNumber,
				"entity_type":      r.corpType,
				"incorporation_date": r.effectiveDate,
			},
			RelationshipStrength: 0.98,
			ProvenanceConfidence: 0.92,
		})
		if err != nil {
			return nil, fmt.Errorf("op=loaders.business.process_record.company_state: %w", err)
		}
		results = append(results, result)
	}

	if r.agentName != "" {
		agentResult, err := l.proposeAgent(ctx, r)
		if err != nil {
			return nil, err
		}
		results = append(results, agentResult)
	}

	return results, nil
}

func (l *BusinessLoader) proposeCompanyInCity(ctx domain.Context, r businessRecord) (domain.ProposeFactResponse, error) {
	var addrParts []string
	if r.hoAddress1 != "" {
		addrParts = append(addrParts, r.hoAddress1)
	}
	if r.hoAddress2 != "" {
		addrParts = append(addrParts, r.hoAddress2)
	}

	// The geo cache is consulted only to log a hit: the propose call below
	// runs either way, and its result is not stored back into the cache.
	if l.geo != nil {
		if _, ok, err := l.geo.Lookup(ctx, string(domain.NodeCity), r.hoCity); err == nil && ok {
			slog.Debug("geo cache hit", slog.String("city", r.hoCity))
		}
	}

	result, err := l.client.ProposeFact(ctx, domain.ProposeFactRequest{
		SourceType:           string(domain.NodeCompany),
		SourceName:           r.legalName,
		TargetType:           string(domain.NodeCity),
		TargetName:           r.hoCity,
		Relationship:         string(domain.RelLocatedAt),
		SourceInfoName:       l.cfg.SourceName,
		SourceInfoType:       l.cfg.SourceType,
		SourceAttributes: map[string]string{
			"iowa_business_id":   r.corpNumber,
			"iowa_corp_number":   r.corpNumber,
			"entity_type":        r.corpType,
			"incorporation_date": r.effectiveDate,
			"address":            strings.Join(addrParts, ", "),
		},
		RelationshipStrength: 0.95,
		ProvenanceConfidence: 0.92,
	})
	if err != nil {
		return domain.ProposeFactResponse{}, fmt.Errorf("op=loaders.business.process_record.company_city: %w", err)
	}
	return result, nil
}

func (l *BusinessLoader) proposeAgent(ctx domain.Context, r businessRecord) (domain.ProposeFactResponse, error) {
	var addrParts, locParts []string
	if r.agentAddress1 != "" {
		addrParts = append(addrParts, r.agentAddress1)
	}
	if r.agentAddress2 != "" {
		addrParts = append(addrParts, r.agentAddress2)
	}
	if r.agentCity != "" {
		locParts = append(locParts, r.agentCity)
	}
	if r.agentState != "" {
		locParts = append(locParts, r.agentState)
	}
	if r.agentZip != "" {
		locParts = append(locParts, r.agentZip)
	}

	attrs := map[string]string{"role": "Registered Agent"}
	if len(addrParts) > 0 {
		attrs["address"] = strings.Join(addrParts, ", ")
	}
	if len(locParts) > 0 {
		attrs["location"] = strings.Join(locParts, ", ")
	}

	agentType := domain.NodePerson
	if isBusinessSuffix(r.agentName) {
		agentType = domain.NodeCompany
	}

	result, err := l.client.ProposeFact(ctx, domain.ProposeFactRequest{
		SourceType:           string(agentType),
		SourceName:           r.agentName,
		TargetType:           string(domain.NodeCompany),
		TargetName:           r.legalName,
		Relationship:         string(domain.RelRegisteredAgent),
		SourceInfoName:       l.cfg.SourceName,
		SourceInfoType:       l.cfg.SourceType,
		SourceAttributes:     attrs,
		RelationshipStrength: 0.95,
		RelationshipMetadata: map[string]any{"corp_number": r.corpNumber},
		ProvenanceConfidence: 0.92,
	})
	if err != nil {
		return domain.ProposeFactResponse{}, fmt.Errorf("op=loaders.business.process_record.agent: %w", err)
	}
	return result, nil
}

var businessSuffixes = []string{"LLC", "INC", "CORP", "LTD", "CO", "COMPANY", "CORPORATION"}

func isBusinessSuffix(name string) bool {
	upper := strings.ToUpper(name)
	for _, suffix := range businessSuffixes {
		if strings.Contains(upper, suffix) {
			return true
		}
	}
	return false
}
