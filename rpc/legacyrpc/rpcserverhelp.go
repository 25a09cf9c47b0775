package legacyrpc

// methodUsages holds the single line usage of every method.
var methodUsages = map[string]string{
	"createtransaction":    `createtransaction {"address":"addr","amount":n,"blockheight":n,"useshieldinputs":true,"utxos":[...],"transparentchangeaddress":"addr"}`,
	"decrypttransaction":   "decrypttransaction \"hex\"",
	"discardtransaction":   "discardtransaction \"txid\"",
	"estimatefee":          `estimatefee {"transparentinputs":n,"transparentoutputs":n,"saplinginputs":n,"saplingoutputs":n}`,
	"finalizetransaction":  "finalizetransaction \"txid\"",
	"getbalance":           "getbalance",
	"getblockcount":        "getblockcount",
	"getinfo":              "getinfo",
	"getnewaddress":        "getnewaddress",
	"getnotefromnullifier": "getnotefromnullifier \"nullifier\"",
	"getpendingbalance":    "getpendingbalance",
	"getsaplingroot":       "getsaplingroot",
	"gettxstatus":          "gettxstatus",
	"handleblocks":         `handleblocks [{"height":n,"txs":[{"hex":"hex","txid":"txid"},...]},...]`,
	"help":                 "help (\"command\")",
	"isownnullifier":       "isownnullifier \"nullifier\"",
	"loadspendingkey":      "loadspendingkey \"extsk\"",
	"reloadfromcheckpoint": "reloadfromcheckpoint height",
	"savewallet":           "savewallet",
}

var helpDescs = map[string]string{
	"createtransaction": methodUsages["createtransaction"] + "\n\n" +
		"Builds and proves a transaction paying amount satoshis to address.\n" +
		"Shielded notes are spent unless useshieldinputs is false, in which\n" +
		"case the utxos are spent and change goes to transparentchangeaddress.\n" +
		"The spent notes stay reserved until the transaction is finalized,\n" +
		"discarded or seen in a block.\n\n" +
		"Result: {\"txid\":\"txid\",\"hex\":\"hex\",\"spentUTXOs\":[...],\"fee\":n}",

	"decrypttransaction": methodUsages["decrypttransaction"] + "\n\n" +
		"Returns the outputs of a raw transaction that pay the wallet.\n\n" +
		"Result: [{\"recipient\":\"addr\",\"value\":n},...]",

	"discardtransaction": methodUsages["discardtransaction"] + "\n\n" +
		"Forgets a created transaction, releasing the notes it reserved.\n" +
		"Unknown transaction ids are ignored.",

	"estimatefee": methodUsages["estimatefee"] + "\n\n" +
		"Returns the fee in satoshis paid by a transaction of the given shape.",

	"finalizetransaction": methodUsages["finalizetransaction"] + "\n\n" +
		"Marks a created transaction as broadcast.  The value it sends back to\n" +
		"the wallet stays pending until the transaction is seen in a block.",

	"getbalance": methodUsages["getbalance"] + "\n\n" +
		"Returns the total value of the unspent notes, including notes\n" +
		"reserved by pending transactions.",

	"getblockcount": methodUsages["getblockcount"] + "\n\n" +
		"Returns the height of the last processed block.",

	"getinfo": methodUsages["getinfo"] + "\n\n" +
		"Returns a summary of the wallet state.",

	"getnewaddress": methodUsages["getnewaddress"] + "\n\n" +
		"Derives the next shielded payment address.",

	"getnotefromnullifier": methodUsages["getnotefromnullifier"] + "\n\n" +
		"Returns the recipient and value of the wallet note a nullifier\n" +
		"belongs to.\n\n" +
		"Result: {\"recipient\":\"addr\",\"value\":n}",

	"getpendingbalance": methodUsages["getpendingbalance"] + "\n\n" +
		"Returns the value created transactions send back to the wallet.",

	"getsaplingroot": methodUsages["getsaplingroot"] + "\n\n" +
		"Returns the root of the commitment tree at the last processed block.",

	"gettxstatus": methodUsages["gettxstatus"] + "\n\n" +
		"Returns the progress of the proof being generated, between 0 and 1.",

	"handleblocks": methodUsages["handleblocks"] + "\n\n" +
		"Ingests blocks in strictly increasing height order and returns the\n" +
		"raw transactions relevant to the wallet.",

	"help": methodUsages["help"] + "\n\n" +
		"Returns the usage of every method, or the help of a single method.",

	"isownnullifier": methodUsages["isownnullifier"] + "\n\n" +
		"Returns whether the nullifier belongs to a note of the wallet.",

	"loadspendingkey": methodUsages["loadspendingkey"] + "\n\n" +
		"Adds spending authority to a view-only wallet.  The key must derive\n" +
		"the wallet viewing key.",

	"reloadfromcheckpoint": methodUsages["reloadfromcheckpoint"] + "\n\n" +
		"Rewinds the wallet to the closest checkpoint at or below height,\n" +
		"dropping all notes and pending transactions.\n\n" +
		"Result: the height of the checkpoint",

	"savewallet": methodUsages["savewallet"] + "\n\n" +
		"Stores a snapshot of the wallet in the database and returns it.",
}
