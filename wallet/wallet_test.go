package wallet

import (
	"bytes"
	"context"
	"testing"

	"github.com/PIVX-Labs/pivx-shield/waddrmgr"
	"github.com/stretchr/testify/require"
)

func TestCreateKeyMaterial(t *testing.T) {
	ctx := context.Background()
	seed := bytes.Repeat([]byte{7}, 32)

	tests := []struct {
		name     string
		cfg      Config
		err      error
		viewOnly bool
	}{
		{
			name: "no key material",
			err:  ErrNoKeyMaterial,
		},
		{
			name: "seed and spending key",
			cfg: Config{
				Seed:        seed,
				SpendingKey: testSpendingKey,
			},
			err: ErrSeedAndSpendingKey,
		},
		{
			name: "seed",
			cfg:  Config{Seed: seed},
		},
		{
			name: "spending key",
			cfg:  Config{SpendingKey: testSpendingKey},
		},
		{
			name:     "viewing key",
			cfg:      Config{ViewingKey: testViewingKey},
			viewOnly: true,
		},
		{
			name: "matching spending and viewing keys",
			cfg: Config{
				SpendingKey: testSpendingKey,
				ViewingKey:  testViewingKey,
			},
		},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			e := newFakeEngine()
			test.cfg.Engine = e
			test.cfg.BirthdayHeight = 120

			w, err := Create(ctx, &test.cfg)
			if test.err != nil {
				require.ErrorIs(t, err, test.err)
				return
			}
			require.NoError(t, err)
			defer w.Stop()

			require.Equal(t, test.viewOnly, w.IsViewOnly())
			require.Equal(t, testViewingKey, w.ViewingKey())
			require.Equal(t, int32(100), w.LastSyncedHeight())
			require.Equal(t, "tree100", w.CommitmentTree())
			require.Zero(t, w.Balance())
		})
	}
}

func TestCreateAuthorityMismatch(t *testing.T) {
	e := newFakeEngine()
	_, err := Create(context.Background(), &Config{
		Engine:      e,
		SpendingKey: testSpendingKey,
		ViewingKey:  "pxviews1other",
	})
	require.True(t, waddrmgr.IsError(err, waddrmgr.ErrAuthorityMismatch))
}

func TestCreateLoadsProver(t *testing.T) {
	e := newFakeEngine()
	w, err := Create(context.Background(), &Config{
		Engine:     e,
		ViewingKey: testViewingKey,
		LoadProver: true,
	})
	require.NoError(t, err)
	defer w.Stop()

	loaded, err := w.ProverIsLoaded(context.Background())
	require.NoError(t, err)
	require.True(t, loaded)
}

func TestLoadSpendingKey(t *testing.T) {
	ctx := context.Background()
	e := newFakeEngine()
	e.viewingKeys["other-key"] = "pxviews1other"
	w := testWallet(t, e, true)

	err := w.LoadSpendingKey(ctx, "other-key")
	require.True(t, waddrmgr.IsError(err, waddrmgr.ErrAuthorityMismatch))
	require.True(t, w.IsViewOnly())

	require.NoError(t, w.LoadSeed(ctx, bytes.Repeat([]byte{1}, 32), 1, 0))
	require.False(t, w.IsViewOnly())
}

func TestNewAddress(t *testing.T) {
	ctx := context.Background()
	w := testWallet(t, newFakeEngine(), true)

	addr, err := w.NewAddress(ctx)
	require.NoError(t, err)
	require.Equal(t, "ptestsapling1addr1", addr)

	addr, err = w.NewAddress(ctx)
	require.NoError(t, err)
	require.Equal(t, "ptestsapling1addr2", addr)
	require.Equal(t, byte(2), w.Manager.DiversifierIndex()[0])
}

func TestProverQueries(t *testing.T) {
	ctx := context.Background()
	w := testWallet(t, newFakeEngine(), true)

	require.NoError(t, w.LoadProver(ctx, "https://example.com/params"))
	require.ErrorIs(t, w.LoadProverWithBytes(ctx, nil, nil),
		errProverNotLoaded)

	progress, err := w.TxStatus(ctx)
	require.NoError(t, err)
	require.Equal(t, 0.5, progress)

	root, err := w.SaplingRoot(ctx)
	require.NoError(t, err)
	require.Equal(t, "root-tree100", root)
}
