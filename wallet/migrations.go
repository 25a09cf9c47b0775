package wallet

import "github.com/PIVX-Labs/pivx-shield/wtxmgr"

// snapshotVersion is a snapshot schema version.  Migration upgrades a record
// written at the previous version to this one.
type snapshotVersion struct {
	Number    uint32
	Migration func(*snapshotRecord) error
}

// versions is a list of the different snapshot versions. The last entry
// should reflect the latest snapshot schema.  If a record happens to be at a
// version number lower than the latest, migrations will be performed in
// order to catch it up.
var versions = []snapshotVersion{
	{
		Number:    0,
		Migration: nil,
	},
	{
		Number:    1,
		Migration: addNullifierHistory,
	},
}

// getLatestVersion returns the version number of the latest snapshot version.
func getLatestVersion() uint32 {
	return versions[len(versions)-1].Number
}

// upgradeSnapshot applies, in order, the migration of every version above
// the record's own.
func upgradeSnapshot(r *snapshotRecord) error {
	if r.Version > getLatestVersion() {
		return ErrUnknownVersion
	}
	for _, v := range versions {
		if v.Number <= r.Version || v.Migration == nil {
			continue
		}
		log.Infof("Upgrading wallet snapshot from version %d to %d",
			r.Version, v.Number)
		if err := v.Migration(r); err != nil {
			return err
		}
		r.Version = v.Number
	}
	return nil
}

// addNullifierHistory upgrades a version 0 record.  Version 0 kept no
// nullifier history and its unspent set was not maintained across spends,
// so both start empty and are rebuilt by the next rescan.
func addNullifierHistory(r *snapshotRecord) error {
	r.UnspentNotes = []wtxmgr.SpendableNote{}
	r.NullifierHistory = map[string]wtxmgr.SimplifiedNote{}
	return nil
}
