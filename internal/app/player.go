package app

import (
	"go.aimuz.me/voxmemo/internal/recording"
	"go.aimuz.me/voxmemo/playback"
)

// PlayerAdapter exposes a playback.Player as a recording.Player.
type PlayerAdapter struct {
	player *playback.Player
}

func NewPlayerAdapter(out playback.Output) *PlayerAdapter {
	return &PlayerAdapter{player: playback.NewPlayer(out)}
}

func (pa *PlayerAdapter) Open(path string) (recording.Stream, error) {
	s, err := pa.player.Open(path)
	if err != nil {
		return nil, err
	}
	return s, nil
}
