package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/PIVX-Labs/pivx-shield/engine"
	"github.com/PIVX-Labs/pivx-shield/internal/prompt"
	"github.com/PIVX-Labs/pivx-shield/wallet"
	"github.com/PIVX-Labs/pivx-shield/walletdb"
)

// errNoWallet is returned when the database holds no wallet and --create was
// not given.
var errNoWallet = errors.New("the wallet does not exist, run with " +
	"--create to create it")

// networkDir returns the directory name of a network directory to hold wallet
// files.
func networkDir(dataDir string, params *netParams) string {
	return filepath.Join(dataDir, params.Name)
}

// openWallet returns the wallet most recently saved in the database.  When
// cfg.Create is set, the user is prompted for the key material of a new
// wallet which is then saved, after confirming if a wallet already exists.
func openWallet(ctx context.Context, cfg *config, e engine.Engine,
	db *walletdb.DB) (*wallet.Wallet, error) {

	snapshot, savedAt, err := db.FetchLatestSnapshot()
	if err == nil && cfg.Create {
		reader := bufio.NewReader(os.Stdin)
		replace, err := prompt.Confirm(reader, "A wallet already "+
			"exists.  Create a new wallet in its place?")
		if err != nil {
			return nil, err
		}
		if !replace {
			return nil, errors.New("the wallet already exists")
		}
		old, _, err := wallet.Load(e, snapshot)
		if err != nil {
			return nil, err
		}
		old.Stop()

		w, err := createWallet(ctx, cfg, e, db)
		if err != nil {
			return nil, err
		}
		if old.ViewingKey() != w.ViewingKey() {
			if err := db.DeleteSnapshot(old.ViewingKey()); err != nil {
				w.Stop()
				return nil, err
			}
		}
		return w, nil
	}

	switch {
	case err == nil:
		w, current, err := wallet.Load(e, snapshot)
		if err != nil {
			return nil, err
		}
		log.Infof("Opened wallet saved at %v, synced to height %d",
			savedAt.Format(time.RFC3339), w.LastSyncedHeight())
		if !current {
			log.Infof("Wallet snapshot upgraded to version %d",
				wallet.CurrentVersion)
		}
		if w.IsTestnet() != cfg.TestNet {
			w.Stop()
			return nil, fmt.Errorf("the saved wallet does not "+
				"belong to the %s network", activeNet.Name)
		}
		if !cfg.NoProver {
			if err := w.LoadProver(ctx, cfg.ProverURL); err != nil {
				w.Stop()
				return nil, err
			}
		}
		return w, nil

	case !errors.Is(err, walletdb.ErrSnapshotNotFound):
		return nil, err

	case !cfg.Create:
		return nil, errNoWallet
	}

	return createWallet(ctx, cfg, e, db)
}

// createWallet prompts the user for information needed to generate a new wallet
// and generates the wallet accordingly.  The new wallet is saved to db.
func createWallet(ctx context.Context, cfg *config, e engine.Engine,
	db *walletdb.DB) (*wallet.Wallet, error) {

	reader := bufio.NewReader(os.Stdin)
	keys, err := prompt.Keys(reader)
	if err != nil {
		return nil, err
	}
	birthday, err := prompt.Birthday(reader, cfg.Birthday)
	if err != nil {
		return nil, err
	}

	fmt.Println("Creating the wallet...")
	w, err := wallet.Create(ctx, &wallet.Config{
		Engine:         e,
		Seed:           keys.Seed,
		SpendingKey:    keys.SpendingKey,
		ViewingKey:     keys.ViewingKey,
		BirthdayHeight: birthday,
		CoinType:       activeNet.CoinType,
		AccountIndex:   cfg.Account,
		LoadProver:     !cfg.NoProver,
		ProverURL:      cfg.ProverURL,
	})
	if err != nil {
		return nil, err
	}

	if err := saveWallet(w, db); err != nil {
		w.Stop()
		return nil, err
	}
	fmt.Println("The wallet has been created successfully.")
	if !w.IsViewOnly() {
		fmt.Println("NOTE: The spending key is not saved.  Use the " +
			"loadspendingkey command to spend after a restart.")
	}
	return w, nil
}

// saveWallet writes a snapshot of the wallet to the database.
func saveWallet(w *wallet.Wallet, db *walletdb.DB) error {
	snapshot, err := w.Save()
	if err != nil {
		return err
	}
	if err := db.PutSnapshot(w.ViewingKey(), snapshot, time.Now()); err != nil {
		return err
	}
	log.Debugf("Saved wallet at height %d", w.LastSyncedHeight())
	return nil
}

// checkCreateDir checks that the path exists and is a directory.
// If path does not exist, it is created.
func checkCreateDir(path string) error {
	if fi, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			// Attempt data directory creation
			if err = os.MkdirAll(path, 0700); err != nil {
				return fmt.Errorf("cannot create directory: %s", err)
			}
		} else {
			return fmt.Errorf("error checking directory: %s", err)
		}
	} else {
		if !fi.IsDir() {
			return fmt.Errorf("path '%s' is not a directory", path)
		}
	}

	return nil
}
