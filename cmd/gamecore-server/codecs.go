package main

import (
	"gamecore/codec"
	"gamecore/luckymine"
	"gamecore/ludo"
)

// ludoCodec and mineCodec are the process-wide codecs for each game's
// persisted record. Versions start at 1; RegisterMigration calls are
// added here as the on-disk layout evolves.
var (
	ludoCodec      = codec.NewCodec[ludo.State, *ludo.State]("ludo.State", 1, ludo.EncodedSize)
	mineCodec      = codec.NewCodec[luckymine.State, *luckymine.State]("luckymine.State", 1, luckymine.EncodedSize)
	mineMultiCodec = codec.NewCodec[luckymine.MultiState, *luckymine.MultiState]("luckymine.MultiState", 1, luckymine.MultiEncodedSize)
)
