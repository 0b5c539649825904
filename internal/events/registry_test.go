// Regatta Tracker - Live GPS Tracking for Sailing Events
// Copyright 2026 RegattaHQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/regattahq/tracker

package events

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T) (*Registry, string) {
	t.Helper()
	dir := t.TempDir()
	r, err := NewRegistry(filepath.Join(dir, "events.json"), dir, "mgr-secret")
	require.NoError(t, err)
	return r, dir
}

func TestCreateAssignsMonotonicIDs(t *testing.T) {
	r, dir := newTestRegistry(t)

	eid1, err := r.Create(CreateRequest{Name: "Spring Series", Timezone: "UTC"})
	require.NoError(t, err)
	require.Equal(t, 1, eid1)

	eid2, err := r.Create(CreateRequest{Name: "Autumn Series", Timezone: "UTC"})
	require.NoError(t, err)
	require.Equal(t, 2, eid2)

	// Layout is created eagerly
	_, err = os.Stat(filepath.Join(dir, "1", "logs"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "2", "logs"))
	require.NoError(t, err)
}

func TestCreateValidation(t *testing.T) {
	r, _ := newTestRegistry(t)

	_, err := r.Create(CreateRequest{})
	require.ErrorIs(t, err, ErrNameRequired)

	_, err = r.Create(CreateRequest{Name: "x", Timezone: "Mars/Olympus"})
	require.ErrorIs(t, err, ErrBadTimezone)
}

func TestCreateDefaultsTimezone(t *testing.T) {
	r, _ := newTestRegistry(t)

	eid, err := r.Create(CreateRequest{Name: "Club Champs"})
	require.NoError(t, err)

	ev, ok := r.Get(eid)
	require.True(t, ok)
	require.Equal(t, DefaultTimezone, ev.Timezone)
	require.NotZero(t, ev.Created)
	require.NotEmpty(t, ev.CreatedISO)
}

func TestApplyUpdatesAllowListedFields(t *testing.T) {
	r, _ := newTestRegistry(t)
	eid, err := r.Create(CreateRequest{Name: "Old Name", Timezone: "UTC"})
	require.NoError(t, err)

	name := "New Name"
	archived := true
	ev, err := r.Apply(eid, Update{Name: &name, Archived: &archived})
	require.NoError(t, err)
	require.Equal(t, "New Name", ev.Name)
	require.True(t, ev.Archived)
	require.NotZero(t, ev.Updated)

	_, err = r.Apply(999, Update{Name: &name})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestListPublicExcludesArchivedAndPasswords(t *testing.T) {
	r, _ := newTestRegistry(t)

	_, err := r.Create(CreateRequest{Name: "Zulu Regatta", Timezone: "UTC", AdminPassword: "a", TrackerPassword: "t"})
	require.NoError(t, err)
	eid2, err := r.Create(CreateRequest{Name: "Alpha Regatta", Timezone: "UTC"})
	require.NoError(t, err)

	archived := true
	_, err = r.Apply(eid2, Update{Archived: &archived})
	require.NoError(t, err)

	public := r.ListPublic()
	require.Len(t, public, 1)
	require.Equal(t, "Zulu Regatta", public[0].Name)
}

func TestListPublicSortedByName(t *testing.T) {
	r, _ := newTestRegistry(t)
	for _, name := range []string{"Charlie", "Alpha", "Bravo"} {
		_, err := r.Create(CreateRequest{Name: name, Timezone: "UTC"})
		require.NoError(t, err)
	}

	public := r.ListPublic()
	require.Len(t, public, 3)
	require.Equal(t, "Alpha", public[0].Name)
	require.Equal(t, "Bravo", public[1].Name)
	require.Equal(t, "Charlie", public[2].Name)
}

func TestRegistryReloadPreservesState(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "events.json")

	r1, err := NewRegistry(path, dir, "mgr-secret")
	require.NoError(t, err)
	eid, err := r1.Create(CreateRequest{Name: "Winter Series", Timezone: "UTC", TrackerPassword: "boat"})
	require.NoError(t, err)

	r2, err := NewRegistry(path, dir, "")
	require.NoError(t, err)
	require.Equal(t, "mgr-secret", r2.ManagerPassword(), "stored manager password survives reload")

	ev, ok := r2.Get(eid)
	require.True(t, ok)
	require.Equal(t, "Winter Series", ev.Name)
	require.Equal(t, "boat", ev.TrackerPassword)

	// IDs keep advancing past reloaded ones
	next, err := r2.Create(CreateRequest{Name: "Another", Timezone: "UTC"})
	require.NoError(t, err)
	require.Equal(t, eid+1, next)
}

func TestOnCreateHook(t *testing.T) {
	r, _ := newTestRegistry(t)

	var created []int
	r.OnCreate = func(eid int) { created = append(created, eid) }

	eid, err := r.Create(CreateRequest{Name: "Hooked", Timezone: "UTC"})
	require.NoError(t, err)
	require.Equal(t, []int{eid}, created)
}

func TestSingleEventDirectory(t *testing.T) {
	s := NewSingleEvent("admin", "boat", "")

	ev, ok := s.Get(LegacyEID)
	require.True(t, ok)
	require.Equal(t, "admin", ev.AdminPassword)
	require.Equal(t, "boat", ev.TrackerPassword)
	require.False(t, ev.Archived)

	_, ok = s.Get(2)
	require.False(t, ok)

	require.Equal(t, []int{LegacyEID}, s.IDs())
	require.Len(t, s.ListPublic(), 1)
}
