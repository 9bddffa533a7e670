/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/julienschmidt/httprouter"
)

func serveHomePage(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		securityHeaders(cfg, w)

		var body strings.Builder

		body.WriteString(`<!DOCTYPE html><html lang="en"><head>`)
		body.WriteString(getFavicon())
		body.WriteString(`<title>typerace</title></head><body>`)
		body.WriteString(`<h1>typerace</h1>`)
		body.WriteString(fmt.Sprintf(`<p><a href="%s/typing">Start a new race</a></p>`, cfg.prefix))
		body.WriteString(`</body></html>`)

		_, _ = w.Write([]byte(body.String()))
	}
}
