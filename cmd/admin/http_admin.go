package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"tilesync.ai/internal/level"
)

type remote struct {
	baseURL string
	token   string
	cl      *http.Client
}

func remoteFlags(fs *flag.FlagSet) func() remote {
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	token := fs.String("token", os.Getenv("TS_ADMIN_TOKEN"), "admin token (or set TS_ADMIN_TOKEN)")
	return func() remote {
		return remote{
			baseURL: strings.TrimRight(strings.TrimSpace(*baseURL), "/"),
			token:   strings.TrimSpace(*token),
			cl:      &http.Client{Timeout: 10 * time.Second},
		}
	}
}

// do sends the request, prints the body and exits non-zero on a non-2xx.
func (r remote) do(method, path string, body any) {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			fatal("marshal", err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, r.baseURL+path, rd)
	if err != nil {
		fatal("request", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}
	resp, err := r.cl.Do(req)
	if err != nil {
		fatal("request", err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	if len(b) > 0 {
		fmt.Println(strings.TrimSpace(string(b)))
	}
	if resp.StatusCode/100 != 2 {
		fmt.Fprintln(os.Stderr, resp.Status)
		os.Exit(1)
	}
}

func loginCmd(args []string) {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	rf := remoteFlags(fs)
	subject := fs.String("sub", "admin", "token subject")
	_ = fs.Parse(args)

	pw := os.Getenv("TS_ADMIN_PASSWORD")
	if pw == "" {
		fmt.Fprintln(os.Stderr, "set TS_ADMIN_PASSWORD")
		os.Exit(2)
	}
	rf().do(http.MethodPost, "/admin/v1/login", map[string]string{"subject": *subject, "password": pw})
}

func getCmd(name, path string, args []string) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	rf := remoteFlags(fs)
	_ = fs.Parse(args)
	rf().do(http.MethodGet, path, nil)
}

func placeCmd(args []string) {
	fs := flag.NewFlagSet("place", flag.ExitOnError)
	rf := remoteFlags(fs)
	kind := fs.String("kind", "", "tile kind (Sign, Chest, ...)")
	pos := fs.String("pos", "", "x,y,z")
	creator := fs.String("creator", "", "sign creator")
	text := fs.String("text", "", `sign text; lines separated by "|"`)
	name := fs.String("name", "", "container custom name")
	_ = fs.Parse(args)

	p, err := parseVec3(*pos)
	if err != nil || strings.TrimSpace(*kind) == "" {
		fmt.Fprintln(os.Stderr, "place needs -kind and -pos x,y,z")
		os.Exit(2)
	}
	spec := level.PlaceSpec{
		Kind:    *kind,
		Pos:     [3]int32{int32(p[0]), int32(p[1]), int32(p[2])},
		Creator: *creator,
		Name:    *name,
	}
	if *text != "" {
		spec.Text = strings.Split(*text, "|")
	}
	rf().do(http.MethodPost, "/admin/v1/tiles", spec)
}

func removeCmd(args []string) {
	fs := flag.NewFlagSet("remove", flag.ExitOnError)
	rf := remoteFlags(fs)
	pos := fs.String("pos", "", "x,y,z")
	_ = fs.Parse(args)

	p, err := parseVec3(*pos)
	if err != nil {
		fmt.Fprintln(os.Stderr, "remove needs -pos x,y,z")
		os.Exit(2)
	}
	rf().do(http.MethodDelete, fmt.Sprintf("/admin/v1/tiles?x=%d&y=%d&z=%d", p[0], p[1], p[2]), nil)
}
