// Package gittest builds local bare repositories standing in for an
// application's remote Git repository.
package gittest

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// NewRemote returns the path of a bare repository whose single commit holds
// files (path relative to the repository root mapped to content).
func NewRemote(t testing.TB, files map[string]string) string {
	t.Helper()

	seed := filepath.Join(t.TempDir(), "seed")
	repo, err := gogit.PlainInit(seed, false)
	if err != nil {
		t.Fatal(err)
	}
	for name, content := range files {
		path := filepath.Join(seed, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	wt, err := repo.Worktree()
	if err != nil {
		t.Fatal(err)
	}
	if err := wt.AddWithOptions(&gogit.AddOptions{All: true}); err != nil {
		t.Fatal(err)
	}
	_, err = wt.Commit("initial application template", &gogit.CommitOptions{
		AllowEmptyCommits: true,
		Author:            &object.Signature{Name: "template", Email: "template@example.com", When: time.Now()},
	})
	if err != nil {
		t.Fatal(err)
	}

	remote := filepath.Join(t.TempDir(), "remote.git")
	if _, err := gogit.PlainClone(remote, true, &gogit.CloneOptions{URL: seed}); err != nil {
		t.Fatal(err)
	}
	return remote
}

// Advance commits a file to the default branch of remote through a separate
// clone, the way another deployer pushing first would.
func Advance(t testing.TB, remote, name, content, message string) {
	t.Helper()

	dir := filepath.Join(t.TempDir(), "other")
	repo, err := gogit.PlainClone(dir, false, &gogit.CloneOptions{URL: remote})
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := wt.Add(name); err != nil {
		t.Fatal(err)
	}
	_, err = wt.Commit(message, &gogit.CommitOptions{
		Author: &object.Signature{Name: "other", Email: "other@example.com", When: time.Now()},
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := repo.Push(&gogit.PushOptions{}); err != nil {
		t.Fatal(err)
	}
}

// NewEmptyRemote returns the path of a bare repository without commits.
func NewEmptyRemote(t testing.TB) string {
	t.Helper()
	remote := filepath.Join(t.TempDir(), "empty.git")
	if _, err := gogit.PlainInit(remote, true); err != nil {
		t.Fatal(err)
	}
	return remote
}

// Snapshot is the content of the head commit of a repository.
type Snapshot struct {
	Message string
	Author  string
	Files   map[string]string
	Commits int
}

// Head reads the head commit of the repository at path.
func Head(t testing.TB, path string) Snapshot {
	t.Helper()

	repo, err := gogit.PlainOpen(path)
	if err != nil {
		t.Fatal(err)
	}
	ref, err := repo.Head()
	if err != nil {
		t.Fatal(err)
	}
	commit, err := repo.CommitObject(ref.Hash())
	if err != nil {
		t.Fatal(err)
	}

	snap := Snapshot{
		Message: commit.Message,
		Author:  commit.Author.Name,
		Files:   map[string]string{},
	}

	files, err := commit.Files()
	if err != nil {
		t.Fatal(err)
	}
	err = files.ForEach(func(f *object.File) error {
		r, err := f.Reader()
		if err != nil {
			return err
		}
		defer r.Close()
		data, err := io.ReadAll(r)
		if err != nil {
			return err
		}
		snap.Files[f.Name] = string(data)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	log, err := repo.Log(&gogit.LogOptions{From: ref.Hash()})
	if err != nil {
		t.Fatal(err)
	}
	err = log.ForEach(func(*object.Commit) error {
		snap.Commits++
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	return snap
}
