// Package proposeclient implements the semantic fact-ingestion contract
// loaders invoke, backed by the graph store's propose_fact stored procedure.
package proposeclient

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/lexara-six/ingestion/internal/domain"
)

// Pool is the subset of postgres.PgxPool this client needs.
type Pool interface {
	QueryRow(ctx domain.Context, sql string, args ...any) pgx.Row
	Query(ctx domain.Context, sql string, args ...any) (pgx.Rows, error)
}

// Client calls the graph store's propose_fact procedure and its provenance
// and conflict lookups.
type Client struct{ Pool Pool }

// New constructs a Client over the given pool.
func New(p Pool) *Client { return &Client{Pool: p} }

// ProposeFact validates the request against the node/relationship taxonomy
// and, if valid, proposes it to the store. Taxonomy rejections are returned
// as a status="error" response with err=nil, matching the store's own
// convention of surfacing business outcomes as data rather than exceptions;
// err is reserved for infrastructure failures (a broken connection, a
// malformed row).
func (c *Client) ProposeFact(ctx domain.Context, req domain.ProposeFactRequest) (domain.ProposeFactResponse, error) {
	if !domain.ValidateRelationshipType(req.Relationship) {
		return rejectResponse(fmt.Sprintf("invalid relationship type: %q", req.Relationship)), nil
	}
	if !domain.ValidateNodeType(req.SourceType) {
		return rejectResponse(fmt.Sprintf("invalid source node type: %q", req.SourceType)), nil
	}
	if !domain.ValidateNodeType(req.TargetType) {
		return rejectResponse(fmt.Sprintf("invalid target node type: %q", req.TargetType)), nil
	}

	sourceAttrs, err := formatAttributes(req.SourceAttributes)
	if err != nil {
		return domain.ProposeFactResponse{}, fmt.Errorf("op=proposeclient.propose_fact.marshal_source_attrs: %w", err)
	}
	targetAttrs, err := formatAttributes(req.TargetAttributes)
	if err != nil {
		return domain.ProposeFactResponse{}, fmt.Errorf("op=proposeclient.propose_fact.marshal_target_attrs: %w", err)
	}
	relMeta, err := jsonOrNull(req.RelationshipMetadata)
	if err != nil {
		return domain.ProposeFactResponse{}, fmt.Errorf("op=proposeclient.propose_fact.marshal_rel_meta: %w", err)
	}
	provMeta, err := jsonOrNull(req.ProvenanceMetadata)
	if err != nil {
		return domain.ProposeFactResponse{}, fmt.Errorf("op=proposeclient.propose_fact.marshal_prov_meta: %w", err)
	}

	q := `SELECT status, overall_confidence, actions, conflicts, provenance_ids
	      FROM propose_fact($1, $2, $3, $4, $5, $6, $7, $8::jsonb, $9::jsonb,
	                         $10, $11, $12, $13::jsonb, $14, $15::jsonb)`
	row := c.Pool.QueryRow(ctx, q,
		req.SourceType, req.SourceName, req.TargetType, req.TargetName, req.Relationship,
		req.SourceInfoName, req.SourceInfoType, sourceAttrs, targetAttrs,
		req.RelationshipStrength, req.RelationshipValidFrom, req.RelationshipValidTo, relMeta,
		req.ProvenanceConfidence, provMeta)

	var status string
	var confidence float64
	var actionsJSON, conflictsJSON []byte
	var provenanceIDs []string
	if err := row.Scan(&status, &confidence, &actionsJSON, &conflictsJSON, &provenanceIDs); err != nil {
		return domain.ProposeFactResponse{}, fmt.Errorf("op=proposeclient.propose_fact: %w", err)
	}

	return parseResponse(status, confidence, actionsJSON, conflictsJSON, provenanceIDs)
}

// BatchProposeFacts proposes each request in sequence, logging progress
// every 100 facts. An infrastructure error on one fact becomes an
// error-status response for that fact rather than aborting the batch.
func (c *Client) BatchProposeFacts(ctx domain.Context, reqs []domain.ProposeFactRequest) []domain.ProposeFactResponse {
	results := make([]domain.ProposeFactResponse, 0, len(reqs))
	for i, req := range reqs {
		resp, err := c.ProposeFact(ctx, req)
		if err != nil {
			slog.Error("propose_fact failed in batch", slog.Int("index", i), slog.Any("error", err))
			resp = rejectResponse(fmt.Sprintf("processing error: %v", err))
		}
		results = append(results, resp)
		if (i+1)%100 == 0 {
			slog.Info("batch propose progress", slog.Int("processed", i+1), slog.Int("total", len(reqs)))
		}
	}
	return results
}

// GetEntityProvenance returns the provenance records recorded for a node.
func (c *Client) GetEntityProvenance(ctx domain.Context, entityID string) ([]map[string]any, error) {
	q := `SELECT p.*, st.description AS source_description
	      FROM provenance p
	      LEFT JOIN source_types st ON p.source_type = st.source_type
	      WHERE p.asset_id = $1 AND p.asset_type = 'node'
	      ORDER BY p.created_at DESC`
	return c.queryRows(ctx, q, entityID)
}

// GetRelationshipConflicts finds conflicting relationships (e.g. a single
// entity pair simultaneously marked Legal_Counsel and Opposing_Counsel)
// between two entities.
func (c *Client) GetRelationshipConflicts(ctx domain.Context, entityAID, entityBID string) ([]map[string]any, error) {
	q := `SELECT r1.relationship_type AS rel1_type, r2.relationship_type AS rel2_type,
	             r1.strength AS rel1_strength, r2.strength AS rel2_strength,
	             r1.created_at AS rel1_created, r2.created_at AS rel2_created
	      FROM relationships r1
	      JOIN relationships r2 ON (
	          (r1.source_node_id = r2.source_node_id AND r1.target_node_id = r2.target_node_id) OR
	          (r1.source_node_id = r2.target_node_id AND r1.target_node_id = r2.source_node_id)
	      )
	      WHERE r1.relationship_id != r2.relationship_id
	        AND ((r1.source_node_id = $1 AND r1.target_node_id = $2) OR
	             (r1.source_node_id = $3 AND r1.target_node_id = $4))
	        AND r1.status = 'active' AND r2.status = 'active'
	        AND (
	            (r1.relationship_type = 'Legal_Counsel' AND r2.relationship_type = 'Opposing_Counsel') OR
	            (r1.relationship_type = 'Opposing_Counsel' AND r2.relationship_type = 'Legal_Counsel')
	        )`
	return c.queryRows(ctx, q, entityAID, entityBID, entityAID, entityBID)
}

func (c *Client) queryRows(ctx domain.Context, q string, args ...any) ([]map[string]any, error) {
	rows, err := c.Pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("op=proposeclient.query: %w", err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	var out []map[string]any
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("op=proposeclient.query_values: %w", err)
		}
		row := make(map[string]any, len(fields))
		for i, f := range fields {
			row[string(f.Name)] = values[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=proposeclient.query_rows: %w", err)
	}
	return out, nil
}

func rejectResponse(msg string) domain.ProposeFactResponse {
	return domain.ProposeFactResponse{
		Success:      false,
		Status:       domain.ProposeError,
		ErrorMessage: msg,
	}
}

func parseResponse(status string, confidence float64, actionsJSON, conflictsJSON []byte, provenanceIDs []string) (domain.ProposeFactResponse, error) {
	resp := domain.ProposeFactResponse{
		Status:            domain.ProposeResponseStatus(status),
		OverallConfidence: confidence,
		ProvenanceIDs:     provenanceIDs,
	}
	resp.Success = resp.Status == domain.ProposeSuccess || resp.Status == domain.ProposeConflicts

	if len(actionsJSON) > 0 {
		if err := json.Unmarshal(actionsJSON, &resp.Actions); err != nil {
			return domain.ProposeFactResponse{}, fmt.Errorf("op=proposeclient.parse_actions: %w", err)
		}
	}
	if len(conflictsJSON) > 0 {
		if err := json.Unmarshal(conflictsJSON, &resp.Conflicts); err != nil {
			return domain.ProposeFactResponse{}, fmt.Errorf("op=proposeclient.parse_conflicts: %w", err)
		}
	}

	if resp.Status == domain.ProposeError && len(resp.Actions) > 0 {
		if msg, ok := resp.Actions[0]["error"].(string); ok {
			resp.ErrorMessage = msg
		} else if msg, ok := resp.Actions[0]["message"].(string); ok {
			resp.ErrorMessage = msg
		}
	}
	return resp, nil
}

// formatAttributes converts a flat attribute map into the store's
// [{"type": k, "value": v}, ...] JSONB shape, defaulting to an empty array.
func formatAttributes(attrs map[string]string) ([]byte, error) {
	if len(attrs) == 0 {
		return []byte("[]"), nil
	}
	formatted := make([]map[string]string, 0, len(attrs))
	for k, v := range attrs {
		formatted = append(formatted, map[string]string{"type": k, "value": v})
	}
	return json.Marshal(formatted)
}

func jsonOrNull(v map[string]any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}
