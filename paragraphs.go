/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"crypto/rand"
)

// Race texts. Every entry should be typeable on a plain keyboard, since
// progress is a strict character-for-character comparison.
var paragraphs = []string{
	"The quick brown fox jumps over the lazy dog. Pack my box with five dozen liquor jugs. How vexingly quick daft zebras jump!",
	"Amazingly few discotheques provide jukeboxes. Sphinx of black quartz, judge my vow. Watch Jeopardy!, Alex Trebek's fun TV quiz game.",
	"Programming is the art of telling another human being what one wants the computer to do. Good code is its own best documentation.",
	"The five boxing wizards jump quickly. How razorback jumping frogs can level six piqued gymnasts! Crazy Fredrick bought many very exquisite opal jewels.",
	"A fast-paced typing game improves your speed and accuracy. Practice makes perfect when learning to type efficiently and without errors.",
}

func randomParagraph() string {
	var b [1]byte
	if _, err := rand.Read(b[:]); err != nil {
		return paragraphs[0]
	}
	return paragraphs[int(b[0])%len(paragraphs)]
}
