/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
)

// Guard failures on client intents. These are surfaced to the offending
// sender as an "error" message and never affect other participants.
var (
	errDuplicateName       = errors.New("that name is already taken")
	errInsufficientPlayers = errors.New("need at least 2 players to start the game")
	errRaceInProgress      = errors.New("a race is already in progress")
	errAwaitingReset       = errors.New("the last race has ended; send play_again to return to the lobby")
	errRaceNotFinished     = errors.New("the race has not finished yet")
	errNoActiveRace        = errors.New("no race is in progress")
	errNotRacing           = errors.New("you are not in the current race")
	errAlreadyFinished     = errors.New("you have already finished")
	errInvalidProgress     = errors.New("invalid progress value")
	errMalformedMessage    = errors.New("malformed message")
)

func logf(cfg *Config, format string, args ...any) {
	if !cfg.verbose {
		return
	}

	log.Printf("%s | "+format, append([]any{time.Now().Format(logDate)}, args...)...)
}

func newPage(title, body string) string {
	var htmlBody strings.Builder

	htmlBody.WriteString(`<!DOCTYPE html><html lang="en"><head>`)
	htmlBody.WriteString(getFavicon())
	htmlBody.WriteString(`<style>`)
	htmlBody.WriteString(`html,body,a{display:block;height:100%;width:100%;text-decoration:none;color:inherit;cursor:auto;}</style>`)
	htmlBody.WriteString(fmt.Sprintf("<title>%s</title></head>", title))
	htmlBody.WriteString(fmt.Sprintf("<body><a href=\"/\">%s</a></body></html>", body))

	return htmlBody.String()
}
