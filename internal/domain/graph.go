package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type VersionType string

const (
	VersionTypeDraft     VersionType = "draft"
	VersionTypePublished VersionType = "published"
)

func (t VersionType) Valid() bool {
	return t == VersionTypeDraft || t == VersionTypePublished
}

func VersionTypeFor(includeDrafts bool) VersionType {
	if includeDrafts {
		return VersionTypeDraft
	}
	return VersionTypePublished
}

// GraphNode is the common face of every node in the prerequisite graph.
// Concrete node kinds live behind it so new entity types stay additive.
type GraphNode interface {
	NodeID() uuid.UUID
	NodeType() EntityType
	Label() string
	Payload() NodePayload
}

// NodePayload is the serialized node shape handed to clients and persisted
// inside cached graph documents.
type NodePayload struct {
	ID        uuid.UUID  `json:"id"`
	Type      EntityType `json:"type"`
	Label     string     `json:"label"`
	Code      string     `json:"code,omitempty"`
	SubjectID uuid.UUID  `json:"subject_id"`
	ParentID  *uuid.UUID `json:"parent_id,omitempty"`
	IsDraft   bool       `json:"is_draft,omitempty"`
}

type SkillNode struct {
	Skill     Skill
	SubjectID uuid.UUID
}

func (n SkillNode) NodeID() uuid.UUID    { return n.Skill.ID }
func (n SkillNode) NodeType() EntityType { return EntitySkill }
func (n SkillNode) Label() string        { return n.Skill.Title }
func (n SkillNode) Payload() NodePayload {
	unitID := n.Skill.UnitID
	return NodePayload{
		ID:        n.Skill.ID,
		Type:      EntitySkill,
		Label:     n.Skill.Title,
		Code:      n.Skill.Code,
		SubjectID: n.SubjectID,
		ParentID:  &unitID,
		IsDraft:   n.Skill.IsDraft,
	}
}

type SubskillNode struct {
	Subskill  Subskill
	SubjectID uuid.UUID
}

func (n SubskillNode) NodeID() uuid.UUID    { return n.Subskill.ID }
func (n SubskillNode) NodeType() EntityType { return EntitySubskill }
func (n SubskillNode) Label() string        { return n.Subskill.Title }
func (n SubskillNode) Payload() NodePayload {
	skillID := n.Subskill.SkillID
	return NodePayload{
		ID:        n.Subskill.ID,
		Type:      EntitySubskill,
		Label:     n.Subskill.Title,
		Code:      n.Subskill.Code,
		SubjectID: n.SubjectID,
		ParentID:  &skillID,
		IsDraft:   n.Subskill.IsDraft,
	}
}

type GraphEdge struct {
	Source    uuid.UUID `json:"source"`
	Target    uuid.UUID `json:"target"`
	Threshold float64   `json:"threshold"`
	IsDraft   bool      `json:"is_draft,omitempty"`
}

// Graph is the derived, fully rebuilt artifact. It is never mutated in place;
// regeneration replaces it wholesale.
type Graph struct {
	SubjectID uuid.UUID     `json:"subject_id"`
	Nodes     []NodePayload `json:"nodes"`
	Edges     []GraphEdge   `json:"edges"`
}

type GraphMetadata struct {
	NodeCount      int `json:"node_count"`
	EdgeCount      int `json:"edge_count"`
	SkillCount     int `json:"skill_count"`
	SubskillCount  int `json:"subskill_count"`
	DraftEdgeCount int `json:"draft_edge_count"`
}

// Describe computes counts for a built graph.
func (g *Graph) Describe() GraphMetadata {
	md := GraphMetadata{NodeCount: len(g.Nodes), EdgeCount: len(g.Edges)}
	for _, n := range g.Nodes {
		switch n.Type {
		case EntitySkill:
			md.SkillCount++
		case EntitySubskill:
			md.SubskillCount++
		}
	}
	for _, e := range g.Edges {
		if e.IsDraft {
			md.DraftEdgeCount++
		}
	}
	return md
}

// CachedGraph is the persisted cache document, one per
// (subject, version, version type) slot.
type CachedGraph struct {
	Key          string        `json:"id"`
	SubjectID    uuid.UUID     `json:"subject_id"`
	VersionID    uuid.UUID     `json:"version_id"`
	VersionType  VersionType   `json:"version_type"`
	Graph        Graph         `json:"graph"`
	Metadata     GraphMetadata `json:"metadata"`
	GeneratedAt  time.Time     `json:"generated_at"`
	LastAccessed time.Time     `json:"last_accessed"`
}

// CacheKey builds the document id for a cache slot.
func CacheKey(subjectID, versionID uuid.UUID, vt VersionType) string {
	return fmt.Sprintf("%s_%s_%s", subjectID, versionID, vt)
}

// CachedGraphSummary is the listing shape: everything about a cached slot
// except the graph body itself.
type CachedGraphSummary struct {
	SubjectID    uuid.UUID     `json:"subject_id"`
	VersionID    uuid.UUID     `json:"version_id"`
	VersionType  VersionType   `json:"version_type"`
	Metadata     GraphMetadata `json:"metadata"`
	GeneratedAt  time.Time     `json:"generated_at"`
	LastAccessed time.Time     `json:"last_accessed"`
}

// Summary strips the graph body from a cached document.
func (c *CachedGraph) Summary() CachedGraphSummary {
	return CachedGraphSummary{
		SubjectID:    c.SubjectID,
		VersionID:    c.VersionID,
		VersionType:  c.VersionType,
		Metadata:     c.Metadata,
		GeneratedAt:  c.GeneratedAt,
		LastAccessed: c.LastAccessed,
	}
}

// CacheSlotStatus reports one slot of a subject's cache.
type CacheSlotStatus struct {
	Cached       bool           `json:"cached"`
	VersionID    *uuid.UUID     `json:"version_id,omitempty"`
	Metadata     *GraphMetadata `json:"metadata,omitempty"`
	GeneratedAt  *time.Time     `json:"generated_at,omitempty"`
	LastAccessed *time.Time     `json:"last_accessed,omitempty"`
}

type CacheStatus struct {
	SubjectID uuid.UUID                       `json:"subject_id"`
	Slots     map[VersionType]CacheSlotStatus `json:"slots"`
}
