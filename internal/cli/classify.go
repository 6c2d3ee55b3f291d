package cli

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/clawdhub/clawdhub/internal/client"
)

// SyncState classifies one local skill against the registry.
type SyncState string

const (
	StateNew    SyncState = "new"
	StateUpdate SyncState = "update"
	StateSynced SyncState = "synced"
)

// PlanItem is one local skill with its sync classification.
type PlanItem struct {
	Skill *LocalSkill
	State SyncState

	// LatestVersion is the registry's latest version, empty for new skills.
	LatestVersion string
	// MatchedVersion is set when the local fingerprint matches a published
	// version.
	MatchedVersion string
	// NextVersion is the version a publish would create.
	NextVersion string
}

// clampConcurrency bounds the classification fan-out to [1, 32].
func clampConcurrency(n int) int {
	if n < 1 {
		return 1
	}
	if n > 32 {
		return 32
	}
	return n
}

// Classify fetches registry state for each local skill and labels it
// new, update or synced. Lookups run concurrently, bounded by concurrency.
func Classify(ctx context.Context, c *client.Client, skills []*LocalSkill, concurrency int) ([]*PlanItem, error) {
	items := make([]*PlanItem, len(skills))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(clampConcurrency(concurrency))

	for i, sk := range skills {
		g.Go(func() error {
			item := &PlanItem{Skill: sk}
			items[i] = item

			detail, err := c.GetSkill(ctx, sk.Slug)
			if client.IsNotFound(err) {
				item.State = StateNew
				return nil
			}
			if err != nil {
				return err
			}
			if detail.LatestVersion != nil {
				item.LatestVersion = detail.LatestVersion.Version
			}

			resolved, err := c.Resolve(ctx, sk.Slug, sk.Fingerprint)
			if err != nil {
				return err
			}
			if resolved.Match != nil {
				item.State = StateSynced
				item.MatchedVersion = resolved.Match.Version
				return nil
			}
			item.State = StateUpdate
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return items, nil
}
