package main

import (
	"net/http"
	"time"
)

func (app *application) serve() error {
	server := &http.Server{
		Addr:        app.Config.GetServerAddr(),
		Handler:     app.routes(),
		IdleTimeout: time.Minute,
		ReadTimeout: 30 * time.Second,
		// Transcription and analysis run synchronously inside the
		// request, bounded by the collaborator timeouts.
		WriteTimeout: 5 * time.Minute,
	}

	app.Logger.Sugar().Infof("starting server on %s", server.Addr)

	return server.ListenAndServe()
}
