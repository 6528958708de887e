package assembly

import (
	"context"

	"github.com/hashicorp/go-multierror"

	"github.com/skilletlabs/skillet/pkg/apperr"
	"github.com/skilletlabs/skillet/pkg/content"
	"github.com/skilletlabs/skillet/pkg/knowledge"
	"github.com/skilletlabs/skillet/pkg/logger"
	"github.com/skilletlabs/skillet/pkg/sessions"
	"github.com/skilletlabs/skillet/pkg/skills"
)

// KnowledgeMode picks how missing knowledge documents are handled.
// There is no default: callers must choose.
type KnowledgeMode int

const (
	// ModeUnset is invalid; Assembler.Assemble rejects it.
	ModeUnset KnowledgeMode = iota
	// ModeAllOrNothing fails the whole call when any document is missing,
	// reporting every miss at once.
	ModeAllOrNothing
	// ModeSkipMissing keeps the caller's order, skips missing documents,
	// and reports the skipped paths alongside the result.
	ModeSkipMissing
)

// DocumentGetter is the slice of the knowledge resolver the loader needs.
type DocumentGetter interface {
	GetDocument(ctx context.Context, p content.Path) (*knowledge.Document, error)
}

// SkillGetter is the slice of the skill resolver the assembler needs.
type SkillGetter interface {
	GetSkill(ctx context.Context, p content.Path) (*skills.Skill, error)
}

// LoadAll resolves every path or fails with an aggregate error naming
// each missing document.
func LoadAll(ctx context.Context, getter DocumentGetter, paths []content.Path) ([]Excerpt, error) {
	var merr *multierror.Error
	excerpts := make([]Excerpt, 0, len(paths))

	for _, p := range paths {
		doc, err := getter.GetDocument(ctx, p)
		if err != nil {
			merr = multierror.Append(merr, err)
			continue
		}
		excerpts = append(excerpts, Excerpt{Ref: p.String(), Text: doc.Body})
	}

	if err := merr.ErrorOrNil(); err != nil {
		return nil, err
	}
	return excerpts, nil
}

// LoadAvailable resolves what it can in order, returning the skipped
// paths so the caller can surface them. Errors other than not-found
// still fail the call.
func LoadAvailable(ctx context.Context, getter DocumentGetter, paths []content.Path) ([]Excerpt, []content.Path, error) {
	excerpts := make([]Excerpt, 0, len(paths))
	var missing []content.Path

	for _, p := range paths {
		doc, err := getter.GetDocument(ctx, p)
		if apperr.IsNotFound(err) {
			missing = append(missing, p)
			continue
		}
		if err != nil {
			return nil, nil, err
		}
		excerpts = append(excerpts, Excerpt{Ref: p.String(), Text: doc.Body})
	}
	return excerpts, missing, nil
}

// Assembler wires the resolvers and the session store behind the
// assemble operation exposed to the routing layer.
type Assembler struct {
	Skills    SkillGetter
	Knowledge DocumentGetter
	Sessions  sessions.Store
}

// SessionRequest is the boundary form of an assemble call.
type SessionRequest struct {
	SessionID      string
	SkillPath      *content.Path
	KnowledgePaths []content.Path
	NewInput       string
	Budget         int
	KnowledgeMode  KnowledgeMode
}

// Result carries the assembled context plus any knowledge paths skipped
// under ModeSkipMissing.
type Result struct {
	Context *PromptContext
	Skipped []content.Path
}

// Assemble resolves the session, skill, and knowledge documents, then
// delegates to the pure Assemble function.
func (a *Assembler) Assemble(ctx context.Context, req SessionRequest) (*Result, error) {
	if len(req.KnowledgePaths) > 0 && req.KnowledgeMode == ModeUnset {
		return nil, apperr.Validation("assembly.assemble", req.SessionID,
			"knowledge mode must be chosen: all-or-nothing or skip-missing")
	}

	session, err := a.Sessions.GetSession(ctx, req.SessionID)
	if err != nil {
		return nil, apperr.Wrap(err, "assembly.assemble", req.SessionID)
	}

	var skillName, instructions string
	if req.SkillPath != nil {
		skill, err := a.Skills.GetSkill(ctx, *req.SkillPath)
		if err != nil {
			return nil, apperr.Wrap(err, "assembly.assemble", req.SkillPath.String())
		}
		skillName = skill.Name
		instructions = skill.Body
	}

	var (
		excerpts []Excerpt
		skipped  []content.Path
	)
	switch req.KnowledgeMode {
	case ModeAllOrNothing:
		excerpts, err = LoadAll(ctx, a.Knowledge, req.KnowledgePaths)
	case ModeSkipMissing:
		excerpts, skipped, err = LoadAvailable(ctx, a.Knowledge, req.KnowledgePaths)
		if len(skipped) > 0 {
			logger.G(ctx).WithField("skipped", len(skipped)).Debug("knowledge documents skipped")
		}
	}
	if err != nil {
		return nil, apperr.Wrap(err, "assembly.assemble", req.SessionID)
	}

	pc, err := Assemble(Request{
		SkillName:    skillName,
		Instructions: instructions,
		Knowledge:    excerpts,
		History:      session.History,
		NewInput:     req.NewInput,
		Budget:       req.Budget,
	})
	if err != nil {
		return nil, err
	}
	return &Result{Context: pc, Skipped: skipped}, nil
}
