package git

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	gitssh "github.com/go-git/go-git/v5/plumbing/transport/ssh"
	"golang.org/x/crypto/ssh"
)

const (
	RemoteName = "origin"
	// DirName is the only entry besides the control directory that
	// survives Clean.
	DirName = ".git"
)

type Author struct {
	Name  string
	Email string
}

type Options struct {
	// PrivateKeyPath is used for ssh:// and scp-like remotes.
	PrivateKeyPath  string
	HostKeyCallback ssh.HostKeyCallback
	// Progress receives remote progress output, may be nil.
	Progress io.Writer
}

// Repository is a working clone of an application repository.
type Repository struct {
	dir      string
	url      string
	repo     *gogit.Repository
	auth     transport.AuthMethod
	progress io.Writer
}

// Clone clones url into dir, which must be empty or missing. An empty remote
// yields a freshly initialized repository with origin pointing at url.
func Clone(ctx context.Context, url, dir string, opts Options) (*Repository, error) {
	auth, err := AuthFor(url, opts.PrivateKeyPath, opts.HostKeyCallback)
	if err != nil {
		return nil, err
	}

	repo, err := gogit.PlainCloneContext(ctx, dir, false, &gogit.CloneOptions{
		URL:      url,
		Auth:     auth,
		Progress: opts.Progress,
	})
	if errors.Is(err, transport.ErrEmptyRemoteRepository) {
		repo, err = initEmpty(dir, url)
	}
	if err != nil {
		return nil, fmt.Errorf("clone %s: %w", url, err)
	}

	return &Repository{
		dir:      dir,
		url:      url,
		repo:     repo,
		auth:     auth,
		progress: opts.Progress,
	}, nil
}

func initEmpty(dir, url string) (*gogit.Repository, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	repo, err := gogit.PlainInit(dir, false)
	if err != nil {
		return nil, err
	}
	_, err = repo.CreateRemote(&config.RemoteConfig{Name: RemoteName, URLs: []string{url}})
	if err != nil {
		return nil, err
	}
	return repo, nil
}

// AuthFor returns public key auth for SSH remotes and nil for everything
// else (file paths, local clones, http).
func AuthFor(url, keyPath string, hostKeyCallback ssh.HostKeyCallback) (transport.AuthMethod, error) {
	ep, err := transport.NewEndpoint(url)
	if err != nil {
		return nil, fmt.Errorf("parse git URL %s: %w", url, err)
	}
	if ep.Protocol != "ssh" {
		return nil, nil
	}

	user := ep.User
	if user == "" {
		user = "git"
	}
	keys, err := gitssh.NewPublicKeysFromFile(user, keyPath, "")
	if err != nil {
		return nil, fmt.Errorf("load private key %s: %w", keyPath, err)
	}
	if hostKeyCallback != nil {
		keys.HostKeyCallback = hostKeyCallback
	}
	return keys, nil
}

func (r *Repository) Dir() string {
	return r.dir
}

// Clean removes every top-level entry of the working tree except .git and
// the names in keep. Removed names are returned sorted.
func (r *Repository) Clean(keep ...string) ([]string, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, fmt.Errorf("read working tree: %w", err)
	}

	preserved := map[string]bool{DirName: true}
	for _, k := range keep {
		preserved[k] = true
	}

	var removed []string
	for _, entry := range entries {
		if preserved[entry.Name()] {
			continue
		}
		if err := os.RemoveAll(filepath.Join(r.dir, entry.Name())); err != nil {
			return removed, fmt.Errorf("remove %s: %w", entry.Name(), err)
		}
		removed = append(removed, entry.Name())
	}
	sort.Strings(removed)
	return removed, nil
}

// Commit stages every change, deletions included, and commits it. A commit
// is created even when the tree did not change.
func (r *Repository) Commit(message string, author Author) (plumbing.Hash, error) {
	wt, err := r.repo.Worktree()
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("open worktree: %w", err)
	}
	if err := wt.AddWithOptions(&gogit.AddOptions{All: true}); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("stage changes: %w", err)
	}

	hash, err := wt.Commit(message, &gogit.CommitOptions{
		All:               true,
		AllowEmptyCommits: true,
		Author: &object.Signature{
			Name:  author.Name,
			Email: author.Email,
			When:  time.Now(),
		},
	})
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("commit: %w", err)
	}
	return hash, nil
}

// Push publishes local branches to origin. An up to date remote is not an
// error.
func (r *Repository) Push(ctx context.Context) error {
	err := r.repo.PushContext(ctx, &gogit.PushOptions{
		RemoteName: RemoteName,
		Auth:       r.auth,
		Progress:   r.progress,
	})
	if err != nil && !errors.Is(err, gogit.NoErrAlreadyUpToDate) {
		return fmt.Errorf("push to %s: %w", r.url, err)
	}
	return nil
}

// RemoteRefs lists the references origin advertises, sorted by name.
func (r *Repository) RemoteRefs(ctx context.Context) ([]*plumbing.Reference, error) {
	remote, err := r.repo.Remote(RemoteName)
	if err != nil {
		return nil, err
	}
	refs, err := remote.ListContext(ctx, &gogit.ListOptions{Auth: r.auth})
	if err != nil {
		return nil, fmt.Errorf("list %s refs: %w", RemoteName, err)
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].Name() < refs[j].Name() })
	return refs, nil
}

// Head returns the current commit hash of the working clone.
func (r *Repository) Head() (plumbing.Hash, error) {
	ref, err := r.repo.Head()
	if err != nil {
		return plumbing.ZeroHash, err
	}
	return ref.Hash(), nil
}
