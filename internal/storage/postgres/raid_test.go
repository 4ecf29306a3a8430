package postgres_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/legendraid/internal/battle"
	"github.com/cory-johannsen/legendraid/internal/game/combat"
	"github.com/cory-johannsen/legendraid/internal/storage/postgres"
	"github.com/cory-johannsen/legendraid/internal/testutil"
)

func TestRaidRepository(t *testing.T) {
	pool := testutil.NewPool(t)
	bosses := postgres.NewBossRepository(pool)
	repo := postgres.NewRaidRepository(pool)
	ctx := context.Background()

	b := makeTestBoss(uniqueName("boss"))
	require.NoError(t, bosses.Upsert(ctx, b))

	newRaid := func(t *testing.T) *battle.RaidRecord {
		t.Helper()
		rec := &battle.RaidRecord{
			ID:     uniqueName("raid"),
			UserID: "u1",
			BossID: b.ID,
			Party: []battle.PartySlot{
				{CharacterID: "ayla", Selected: []int{0, 1, 2}},
				{CharacterID: "brom", Selected: []int{3}},
			},
		}
		require.NoError(t, repo.CreateRaid(ctx, rec))
		return rec
	}

	t.Run("create is pending without tables", func(t *testing.T) {
		rec := newRaid(t)
		assert.Equal(t, battle.RaidPending, rec.Status)
		assert.False(t, rec.CreatedAt.IsZero())

		got, err := repo.GetRaid(ctx, rec.ID)
		require.NoError(t, err)
		assert.Equal(t, battle.RaidPending, got.Status)
		assert.Nil(t, got.Tables)
		assert.Equal(t, rec.Party, got.Party)
		assert.Equal(t, combat.OutcomeNone, got.Outcome)
	})

	t.Run("tables move pending to ready once", func(t *testing.T) {
		rec := newRaid(t)
		require.NoError(t, repo.SaveTables(ctx, rec.ID, []byte(`{"threat":[5,5]}`)))

		got, err := repo.GetRaid(ctx, rec.ID)
		require.NoError(t, err)
		assert.Equal(t, battle.RaidReady, got.Status)
		assert.JSONEq(t, `{"threat":[5,5]}`, string(got.Tables))

		err = repo.SaveTables(ctx, rec.ID, []byte(`{}`))
		assert.ErrorIs(t, err, battle.ErrNotFound)
	})

	t.Run("finish", func(t *testing.T) {
		rec := newRaid(t)
		rec.BossHP = 0
		rec.Engagement = 7
		rec.Outcome = combat.OutcomeWin
		rec.Log = []string{"The party strikes.", "Vorthak the Ashen falls."}
		rec.PartyStatus = []battle.MemberStatus{
			{CharacterID: "ayla", Name: "Ayla", HP: 12.5, MaxHP: 40},
			{CharacterID: "brom", Name: "Brom", HP: 0, MaxHP: 38},
		}
		require.NoError(t, repo.FinishRaid(ctx, rec))
		require.NoError(t, repo.FinishRaid(ctx, rec), "finishing again is harmless")

		got, err := repo.GetRaid(ctx, rec.ID)
		require.NoError(t, err)
		assert.Equal(t, battle.RaidFinished, got.Status)
		assert.Equal(t, combat.OutcomeWin, got.Outcome)
		assert.Equal(t, 7, got.Engagement)
		assert.Equal(t, rec.Log, got.Log)
		assert.Equal(t, rec.PartyStatus, got.PartyStatus)

		assert.ErrorIs(t, repo.SaveTables(ctx, rec.ID, []byte(`{}`)), battle.ErrNotFound,
			"a finished raid never returns to ready")
	})

	t.Run("not found", func(t *testing.T) {
		_, err := repo.GetRaid(ctx, "missing")
		assert.ErrorIs(t, err, postgres.ErrRaidNotFound)
		assert.ErrorIs(t, repo.FinishRaid(ctx, &battle.RaidRecord{ID: "missing"}), battle.ErrNotFound)
	})
}
