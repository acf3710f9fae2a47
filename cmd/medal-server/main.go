// SPDX-License-Identifier: Apache-2.0
package main

import (
	"encoding/base64"
	"flag"
	"io"
	"net/http"

	"medal/internal/applog"
	"medal/internal/config"
	"medal/internal/decompiler"
	"medal/internal/lifter"
	"medal/internal/pipelineerr"

	"github.com/segmentio/ksuid"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (default bind address used if omitted)")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			applog.Error("failed to load config %s: %s", *configPath, err)
			return
		}
		cfg = loaded
	}

	srv := &server{
		pipeline: decompiler.New(),
		lift:     lifter.Unimplemented{},
		maxBytes: cfg.MaxBytecodeBytes,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/decompile", srv.handleDecompile)

	applog.Info("listening on %s", cfg.BindAddr)
	if err := http.ListenAndServe(cfg.BindAddr, mux); err != nil {
		applog.Error("server stopped: %s", err)
	}
}

type server struct {
	pipeline *decompiler.Pipeline
	lift     lifter.Lifter
	maxBytes int64
}

// handleDecompile implements the POST /decompile contract: a base64-encoded
// bytecode chunk as the request body, a 200 response with the decompiled
// Lua source on success, 400 on a malformed request (bad base64 or a
// bytecode parse failure), 413 on a body over the configured size cap, 500
// on any other read or pipeline failure.
func (s *server) handleDecompile(w http.ResponseWriter, r *http.Request) {
	requestID := ksuid.New().String()
	log := applog.WithRequestID(requestID)

	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body := io.Reader(r.Body)
	if s.maxBytes > 0 {
		body = io.LimitReader(r.Body, s.maxBytes+1)
	}
	encoded, err := io.ReadAll(body)
	if err != nil {
		log.Error("failed to read request body: %s", err)
		http.Error(w, "failed to read request body", http.StatusInternalServerError)
		return
	}
	if s.maxBytes > 0 && int64(len(encoded)) > s.maxBytes {
		log.Warn("request body exceeds %d bytes", s.maxBytes)
		http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
		return
	}

	bytecode := make([]byte, base64.StdEncoding.DecodedLen(len(encoded)))
	n, err := base64.StdEncoding.Decode(bytecode, encoded)
	if err != nil {
		log.Warn("invalid base64 payload: %s", err)
		http.Error(w, "invalid base64 data received: "+err.Error(), http.StatusBadRequest)
		return
	}
	bytecode = bytecode[:n]

	prog, err := s.lift.Lift(bytecode)
	if err != nil {
		s.writeError(w, log, err)
		return
	}

	out, err := s.pipeline.Decompile(prog)
	if err != nil {
		s.writeError(w, log, err)
		return
	}

	log.Info("successfully decompiled bytecode")
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, out)
}

func (s *server) writeError(w http.ResponseWriter, log *applog.RequestLogger, err error) {
	if pipelineerr.Is(err, pipelineerr.KindBytecodeParse) {
		log.Warn("bytecode parse failure: %s", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	log.Error("decompile failed: %s", err)
	http.Error(w, err.Error(), http.StatusInternalServerError)
}
