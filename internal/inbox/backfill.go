package inbox

import (
	"context"
	"log/slog"

	"github.com/user/agentinbox/internal/params"
	"github.com/user/agentinbox/internal/types"
)

// ProjectResolver returns the hosting project id of a deployment, or ""
// for deployments that are not project-scoped.
type ProjectResolver interface {
	ProjectID(ctx context.Context, deploymentURL string) (string, error)
}

// BackfillIDs re-keys every project-scoped inbox to
// "<project_id>:<graph_id>" once. Inboxes whose deployment cannot be
// resolved keep their id. The completion flag is written after the pass and
// the selected inbox in q is remapped to its new id.
func (r *Registry) BackfillIDs(ctx context.Context, resolver ProjectResolver, q params.Query) (params.Query, bool) {
	if done, _ := r.prefs.Get(types.PrefBackfillComplete); done == "true" {
		return q, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	inboxes := r.load()
	remapped := map[types.InboxID]types.InboxID{}
	for i := range inboxes {
		ib := &inboxes[i]
		if ib.DeploymentURL == "" || ib.GraphID == "" {
			continue
		}
		projectID, err := resolver.ProjectID(ctx, ib.DeploymentURL)
		if err != nil {
			slog.Warn("backfill: resolving deployment failed", "inbox_id", ib.ID, "url", ib.DeploymentURL, "error", err)
			continue
		}
		if projectID == "" {
			continue
		}
		newID := types.DeploymentInboxID(projectID, ib.GraphID)
		if newID == ib.ID || indexOf(inboxes, newID) >= 0 {
			continue
		}
		remapped[ib.ID] = newID
		ib.ID = newID
	}

	if len(remapped) > 0 {
		r.persist(inboxes)
	}
	if err := r.prefs.Set(types.PrefBackfillComplete, "true"); err != nil {
		r.writeFailed(err)
	}
	slog.Info("inbox id backfill complete", "remapped", len(remapped))

	if newID, ok := remapped[types.InboxID(q.Get(params.AgentInbox))]; ok {
		return q.Update(map[string]string{params.AgentInbox: string(newID)}), true
	}
	return q, len(remapped) > 0
}
