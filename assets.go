package lightmapper

import (
	"context"
	"io/fs"
	"os"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/sync/semaphore"
)

type AssetId string

func makeAssetId() AssetId {
	return AssetId(uuid.NewString())
}

// Handle refers to a texture load, issued or finished. The zero Handle refers
// to nothing and always reports LoadStateNotFound.
type Handle struct {
	id   AssetId
	path string
}

func (h Handle) Id() AssetId    { return h.id }
func (h Handle) Path() string   { return h.path }
func (h Handle) IsValid() bool  { return h.id != "" }
func (h Handle) String() string { return h.path }

type LoadState int

const (
	LoadStateNotFound LoadState = iota
	LoadStateLoading
	LoadStateLoaded
	LoadStateFailed
)

func (s LoadState) String() string {
	switch s {
	case LoadStateNotFound:
		return "not found"
	case LoadStateLoading:
		return "loading"
	case LoadStateLoaded:
		return "loaded"
	case LoadStateFailed:
		return "failed"
	}
	return "invalid"
}

// AssetLoader is the asset backend seen by the lightmap passes.
// Load must not block; LoadState may be polled every frame.
type AssetLoader interface {
	Load(path string) Handle
	LoadState(h Handle) LoadState
}

// loadErrorReporter is implemented by backends that keep the cause of a
// failed load.
type loadErrorReporter interface {
	LoadError(h Handle) error
}

type assetEntry struct {
	path    string
	state   LoadState
	texture *TextureAsset
	err     error
}

// AssetServer loads textures from an fs.FS on background goroutines. Requests
// for a path already known return the existing handle.
type AssetServer struct {
	root     fs.FS
	log      Logger
	decoders map[string]TextureDecoder

	mu      sync.Mutex
	byPath  map[string]AssetId
	entries map[AssetId]*assetEntry

	sem    *semaphore.Weighted
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewAssetServer(root fs.FS, workers int, log Logger) *AssetServer {
	if workers < 1 {
		workers = 1
	}
	if log == nil {
		log = NewNopLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &AssetServer{
		root:     root,
		log:      log,
		decoders: defaultTextureDecoders(),
		byPath:   make(map[string]AssetId),
		entries:  make(map[AssetId]*assetEntry),
		sem:      semaphore.NewWeighted(int64(workers)),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// RegisterDecoder installs or replaces the decoder for a file extension
// (".ktx2", ".png", ...).
func (server *AssetServer) RegisterDecoder(ext string, decoder TextureDecoder) {
	server.mu.Lock()
	defer server.mu.Unlock()
	server.decoders[textureExt("x"+ext)] = decoder
}

func (server *AssetServer) Load(path string) Handle {
	server.mu.Lock()
	defer server.mu.Unlock()

	if id, ok := server.byPath[path]; ok {
		return Handle{id: id, path: path}
	}

	id := makeAssetId()
	server.byPath[path] = id
	server.entries[id] = &assetEntry{path: path, state: LoadStateLoading}
	decoder := server.decoders[textureExt(path)]

	server.wg.Add(1)
	go server.load(id, path, decoder)

	return Handle{id: id, path: path}
}

func (server *AssetServer) load(id AssetId, path string, decoder TextureDecoder) {
	defer server.wg.Done()

	if err := server.sem.Acquire(server.ctx, 1); err != nil {
		server.finish(id, nil, errors.Wrapf(err, "load %s", path))
		return
	}
	defer server.sem.Release(1)

	if decoder == nil {
		server.finish(id, nil, errors.Errorf("load %s: no decoder for %q", path, textureExt(path)))
		return
	}

	data, err := fs.ReadFile(server.root, path)
	if err != nil {
		server.finish(id, nil, errors.Wrapf(err, "load %s", path))
		return
	}

	tex, err := decoder(data)
	if err != nil {
		server.finish(id, nil, errors.Wrapf(err, "load %s", path))
		return
	}
	tex.Source = path
	server.finish(id, tex, nil)
}

func (server *AssetServer) finish(id AssetId, tex *TextureAsset, err error) {
	server.mu.Lock()
	entry := server.entries[id]
	if err != nil {
		entry.state = LoadStateFailed
		entry.err = err
	} else {
		entry.state = LoadStateLoaded
		entry.texture = tex
	}
	server.mu.Unlock()

	if err != nil {
		server.log.Warnf("asset %s failed: %v", entry.path, err)
	} else {
		server.log.Debugf("asset %s loaded (%dx%d)", entry.path, tex.Width, tex.Height)
	}
}

func (server *AssetServer) LoadState(h Handle) LoadState {
	server.mu.Lock()
	defer server.mu.Unlock()

	if entry, ok := server.entries[h.id]; ok {
		return entry.state
	}
	return LoadStateNotFound
}

// LoadError returns why h failed, or nil.
func (server *AssetServer) LoadError(h Handle) error {
	server.mu.Lock()
	defer server.mu.Unlock()

	if entry, ok := server.entries[h.id]; ok {
		return entry.err
	}
	return nil
}

func (server *AssetServer) Texture(h Handle) (*TextureAsset, bool) {
	server.mu.Lock()
	defer server.mu.Unlock()

	entry, ok := server.entries[h.id]
	if !ok || entry.state != LoadStateLoaded {
		return nil, false
	}
	return entry.texture, true
}

// Close abandons queued loads and waits for running ones to finish.
func (server *AssetServer) Close() {
	server.cancel()
	server.wg.Wait()
}

// AssetServerModule installs an AssetServer reading from FS, or from the Root
// directory when FS is nil, along with an empty Materials store.
type AssetServerModule struct {
	Root    string
	FS      fs.FS
	Workers int
}

func (mod AssetServerModule) Install(app *App, cmd *Commands) {
	root := mod.FS
	if root == nil {
		dir := mod.Root
		if dir == "" {
			dir = "."
		}
		root = os.DirFS(dir)
	}
	cmd.AddResources(NewAssetServer(root, mod.Workers, app.Logger()), NewMaterials())
}
