// Package syncer reconciles the local journal with remote storage after a
// successful login. Reconciliation is best-effort: a sync failure never
// fails the authentication flow that triggered it.
package syncer

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"quiettime/internal/journal"
	"quiettime/internal/session"
)

// uploadConcurrency bounds how many entries are pushed to remote storage at
// once.
const uploadConcurrency = 4

// Report summarizes one reconciliation run. Failures are recorded here
// rather than returned, so callers can observe them without the login
// failing.
type Report struct {
	Skipped  bool // session was not authenticated
	Uploaded int  // local entries pushed to remote
	Pulled   int  // remote entries written to local
	Errors   []error
}

// Failed reports whether any step of the run went wrong.
func (r Report) Failed() bool {
	return len(r.Errors) > 0
}

// Reconciler merges the local and remote journal stores.
type Reconciler struct {
	local  journal.EntryRepo
	remote journal.EntryRepo
	logger *zap.Logger
}

// NewReconciler wires a reconciler over the two stores.
func NewReconciler(local, remote journal.EntryRepo, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{local: local, remote: remote, logger: logger}
}

// Sync runs the two reconciliation phases in order: first local entries are
// merged up to remote storage, then remote entries are pulled down. The
// phases are strictly sequential so an entry uploaded in phase one is seen
// as already synced in phase two. When the same id exists on both sides,
// the copy with the strictly later UpdatedAt wins; on an exact tie the
// remote copy wins.
func (r *Reconciler) Sync(ctx context.Context, sess session.Session) Report {
	if !sess.IsAuthenticated() {
		return Report{Skipped: true}
	}
	key := sess.Key()

	var report Report

	local, err := r.local.List(ctx, key, journal.Query{})
	if err != nil {
		r.logger.Warn("sync aborted, local listing failed", zap.Error(err))
		report.Errors = append(report.Errors, err)
		return report
	}
	remote, err := r.remote.List(ctx, key, journal.Query{})
	if err != nil {
		r.logger.Warn("sync aborted, remote listing failed", zap.Error(err))
		report.Errors = append(report.Errors, err)
		return report
	}

	remoteByID := make(map[string]journal.Entry, len(remote))
	for _, e := range remote {
		remoteByID[e.ID] = e
	}

	uploaded, errs := r.upload(ctx, key, local, remoteByID)
	report.Uploaded = uploaded
	report.Errors = append(report.Errors, errs...)

	localByID := make(map[string]journal.Entry, len(local))
	for _, e := range local {
		localByID[e.ID] = e
	}
	pulled, errs := r.pull(ctx, key, remote, localByID)
	report.Pulled = pulled
	report.Errors = append(report.Errors, errs...)

	if report.Failed() {
		r.logger.Warn("sync finished with errors",
			zap.Int("uploaded", report.Uploaded),
			zap.Int("pulled", report.Pulled),
			zap.Int("errors", len(report.Errors)))
	} else {
		r.logger.Info("sync finished",
			zap.Int("uploaded", report.Uploaded),
			zap.Int("pulled", report.Pulled))
	}
	return report
}

// upload pushes local entries that are missing on the remote, or strictly
// newer than the remote copy. Uploads run concurrently but each failure is
// recorded and the rest continue.
func (r *Reconciler) upload(ctx context.Context, key string, local []journal.Entry, remoteByID map[string]journal.Entry) (int, []error) {
	var (
		mu       sync.Mutex
		uploaded int
		errs     []error
	)

	g := new(errgroup.Group)
	g.SetLimit(uploadConcurrency)

	for _, e := range local {
		if theirs, ok := remoteByID[e.ID]; ok && !localWins(e.UpdatedAt, theirs.UpdatedAt) {
			continue
		}
		e := e
		g.Go(func() error {
			if err := r.remote.Put(ctx, key, e); err != nil {
				r.logger.Warn("upload failed",
					zap.String("entry", e.ID),
					zap.Error(err))
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
				return nil
			}
			mu.Lock()
			uploaded++
			mu.Unlock()
			return nil
		})
	}
	g.Wait()
	return uploaded, errs
}

// pull writes down every remote entry that is missing locally or not older
// than the local copy.
func (r *Reconciler) pull(ctx context.Context, key string, remote []journal.Entry, localByID map[string]journal.Entry) (int, []error) {
	var (
		pulled int
		errs   []error
	)
	for _, e := range remote {
		if mine, ok := localByID[e.ID]; ok && localWins(mine.UpdatedAt, e.UpdatedAt) {
			continue
		}
		if err := r.local.Put(ctx, key, e); err != nil {
			r.logger.Warn("pull failed",
				zap.String("entry", e.ID),
				zap.Error(err))
			errs = append(errs, err)
			continue
		}
		pulled++
	}
	return pulled, errs
}

// localWins reports whether the local timestamp beats the remote one. A tie
// goes to the remote copy.
func localWins(local, remote time.Time) bool {
	return local.After(remote)
}
