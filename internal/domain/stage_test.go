package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStageTrackerHappyPath(t *testing.T) {
	tr := NewStageTracker()
	for _, s := range []Stage{StageClustering, StageMatrixBuilding, StageSolving, StageReconciling, StageDone} {
		require.NoError(t, tr.Advance(s))
	}
	require.Equal(t, StageDone, tr.Current())
	require.Len(t, tr.History(), 6)

	// terminal
	require.Error(t, tr.Advance(StageError))
}

func TestStageTrackerRejectsSkips(t *testing.T) {
	tr := NewStageTracker()
	require.Error(t, tr.Advance(StageSolving))
	require.Error(t, tr.Advance(StageReconciling))
	require.NoError(t, tr.Advance(StageError))
	require.True(t, tr.Current().Terminal())
	require.Error(t, tr.Advance(StageClustering))
}

func TestClusterLabel(t *testing.T) {
	var l ClusterLabel
	require.False(t, l.IsAssigned())
	require.Equal(t, -1, l.Int())

	m := Member(3)
	id, ok := m.ID()
	require.True(t, ok)
	require.Equal(t, 3, id)
	require.True(t, SameCluster(m, Member(3)))
	require.False(t, SameCluster(m, Member(2)))
	require.False(t, SameCluster(Unassigned, Unassigned))
}

func TestCoordinatesValidate(t *testing.T) {
	require.NoError(t, Coordinates{Lat: 28.6, Lon: 77.2}.Validate())
	require.Error(t, Coordinates{Lat: 91, Lon: 0}.Validate())
	require.Error(t, Coordinates{Lat: 0, Lon: -181}.Validate())
}

func TestHaversine(t *testing.T) {
	a := Coordinates{Lat: 0, Lon: 0}
	b := Coordinates{Lat: 0, Lon: 1}
	// one degree of longitude on the equator
	require.InDelta(t, 111195, HaversineMeters(a, b), 50)
	require.InDelta(t, HaversineMeters(a, b), HaversineMeters(b, a), 1e-9)
	require.Zero(t, HaversineMeters(a, a))
}

func TestNewFleet(t *testing.T) {
	fleet, err := NewFleet(3, 10, 150000, 0)
	require.NoError(t, err)
	require.Len(t, fleet, 3)
	require.Equal(t, 2, fleet[2].VehicleID)
	require.True(t, fleet[0].Fits(10, 1000))
	require.False(t, fleet[0].Fits(11, 0))

	_, err = NewFleet(0, 10, 1, 0)
	require.ErrorIs(t, err, ErrValidation)
}

func TestStageShortCircuitForEmptyRun(t *testing.T) {
	require.True(t, CanTransition(StageValidating, StageDone))
	require.False(t, CanTransition(StageClustering, StageDone))
}
