/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package services

import (
    "context"
    "errors"
    "fmt"
    "strings"

    "github.com/rodri-oliveira/pmo-backend/internal/domain"
    "github.com/rodri-oliveira/pmo-backend/internal/repo"
)

// ErrOutOfScope marks an issue whose upstream key does not belong to any
// configured section prefix.
var ErrOutOfScope = errors.New("issue is out of scope for configured sections")

// runCache is private to one sync run. Repeated encounters of the same
// upstream key within a run resolve to the single already-created row
// instead of attempting a second insert.
type runCache struct {
    projects     map[string]*domain.Project
    issueProject map[string]int64
    created      int
}

func newRunCache() *runCache {
    return &runCache{projects: map[string]*domain.Project{}, issueProject: map[string]int64{}}
}

// sectionPrefix extracts the section prefix from an upstream key: the
// text before the first dash, with configured aliases applied.
func (s *Service) sectionPrefix(key string) string {
    p := key
    if i := strings.Index(key, "-"); i >= 0 { p = key[:i] }
    if alias, ok := s.cfg.SectionAliases[p]; ok { p = alias }
    return p
}

func (s *Service) prefixAllowed(p string) bool {
    for _, allowed := range s.cfg.SectionPrefixes {
        if p == allowed { return true }
    }
    return false
}

// resolveProject finds or creates the local project for an upstream key.
// Lookup order: in-run cache, store by upstream key, then create under
// the section whose prefix claims the key.
func (s *Service) resolveProject(ctx context.Context, rc *runCache, upstreamKey, candidateName string) (*domain.Project, error) {
    if upstreamKey == "" { return nil, errors.New("empty upstream project key") }
    if p, ok := rc.projects[upstreamKey]; ok { return p, nil }

    p, err := s.store.ProjectByUpstreamKey(ctx, upstreamKey)
    if err == nil {
        rc.projects[upstreamKey] = p
        return p, nil
    }
    if !errors.Is(err, repo.ErrNotFound) { return nil, err }

    prefix := s.sectionPrefix(upstreamKey)
    if !s.prefixAllowed(prefix) {
        return nil, fmt.Errorf("%w: key=%s prefix=%s", ErrOutOfScope, upstreamKey, prefix)
    }
    sec, err := s.store.SectionByPrefix(ctx, prefix)
    if errors.Is(err, repo.ErrNotFound) {
        return nil, fmt.Errorf("%w: no active section for prefix %s", ErrOutOfScope, prefix)
    }
    if err != nil { return nil, err }

    name := candidateName
    if name == "" { name = upstreamKey }
    np := domain.Project{Name: name, UpstreamKey: upstreamKey, SectionID: sec.ID, Status: "active", Active: true}
    id, err := s.store.CreateProject(ctx, np)
    if err != nil { return nil, err }
    np.ID = id
    rc.created++
    rc.projects[upstreamKey] = &np
    s.log.Info().Str("upstream_key", upstreamKey).Str("section", sec.Name).Int64("project_id", id).Msg("project created")
    return &np, nil
}

// resolveResource matches a worklog author to a local resource by
// upstream account id, falling back to email.
func (s *Service) resolveResource(ctx context.Context, accountID, email string) (*domain.Resource, error) {
    if accountID != "" {
        res, err := s.store.ResourceByUpstreamID(ctx, accountID)
        if err == nil { return res, nil }
        if !errors.Is(err, repo.ErrNotFound) { return nil, err }
    }
    if email != "" {
        res, err := s.store.ResourceByEmail(ctx, email)
        if err == nil { return res, nil }
        if !errors.Is(err, repo.ErrNotFound) { return nil, err }
    }
    return nil, fmt.Errorf("unknown resource: account_id=%s email=%s", accountID, email)
}
