package assets

import (
	"context"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/angelmondragon/storefront-core/internal/entitystore"
	"github.com/angelmondragon/storefront-core/pkg/blobstore"
	"github.com/angelmondragon/storefront-core/pkg/config"
	"github.com/angelmondragon/storefront-core/pkg/db"
	"github.com/angelmondragon/storefront-core/pkg/db/models"
	"github.com/angelmondragon/storefront-core/pkg/imaging"
	"github.com/angelmondragon/storefront-core/pkg/memcache"
	"github.com/angelmondragon/storefront-core/pkg/pointer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSession struct {
	mu     sync.Mutex
	userID string
}

func (s *fakeSession) set(userID string) {
	s.mu.Lock()
	s.userID = userID
	s.mu.Unlock()
}

func (s *fakeSession) IsAuthenticated() bool {
	_, ok := s.CurrentUserID()
	return ok
}

func (s *fakeSession) CurrentUserID() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID, s.userID != ""
}

// countingMetadata records how often the metadata tier is consulted.
type countingMetadata struct {
	MetadataStore

	mu        sync.Mutex
	latest    int
	recordErr error
}

func (m *countingMetadata) Latest(ctx context.Context, userID string) (*models.ImageMetadata, error) {
	m.mu.Lock()
	m.latest++
	m.mu.Unlock()
	return m.MetadataStore.Latest(ctx, userID)
}

func (m *countingMetadata) Record(ctx context.Context, meta *models.ImageMetadata) error {
	if m.recordErr != nil {
		return m.recordErr
	}
	return m.MetadataStore.Record(ctx, meta)
}

func (m *countingMetadata) latestCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.latest
}

type failingPointers struct{}

func (failingPointers) Get(context.Context, string) (string, bool, error) {
	return "", false, errors.New("keychain locked")
}

func (failingPointers) Set(context.Context, string, string) error {
	return errors.New("keychain locked")
}

type brokenEncoder struct{ imaging.JPEG }

func (brokenEncoder) Encode(image.Image, int) ([]byte, error) {
	return nil, errors.New("encoder exploded")
}

type unreadableBlobs struct{ *blobstore.Store }

func (unreadableBlobs) Read(string) ([]byte, error) {
	return nil, os.ErrPermission
}

type fixture struct {
	session  *fakeSession
	blobs    *blobstore.Store
	store    *entitystore.Store
	metadata *countingMetadata
	pointers *pointer.MemoryStore
	memory   *memcache.Cache[string, *Artifact]
	cache    *Cache
	clock    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	client, err := db.New(context.Background(), config.DBConfig{
		Driver: config.DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "assets.db"),
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.DB().AutoMigrate(models.All()...))

	f := &fixture{
		session: &fakeSession{userID: "u1"},
		blobs:   blobstore.New(filepath.Join(t.TempDir(), "profile_images")),
		store:   entitystore.New(client, entitystore.Options{}),
		clock:   time.Unix(1_760_000_000, 0),
	}
	f.metadata = &countingMetadata{MetadataStore: NewMetadataRepository(f.store)}
	f.rebuild(t)
	return f
}

// rebuild swaps in empty memory and pointer tiers, keeping blobs and metadata.
func (f *fixture) rebuild(t *testing.T) {
	t.Helper()
	memory, err := memcache.New[string, *Artifact](1)
	require.NoError(t, err)
	f.memory = memory
	f.pointers = pointer.NewMemoryStore()
	f.cache = f.build(t, Params{})
}

func (f *fixture) build(t *testing.T, override Params) *Cache {
	t.Helper()
	p := Params{
		Session:      f.session,
		Blobs:        f.blobs,
		Memory:       f.memory,
		Pointers:     f.pointers,
		Metadata:     f.metadata,
		MaxDimension: 64,
		Quality:      80,
		Now: func() time.Time {
			f.clock = f.clock.Add(time.Second)
			return f.clock
		},
	}
	if override.Pointers != nil {
		p.Pointers = override.Pointers
	}
	if override.Imaging != nil {
		p.Imaging = override.Imaging
	}
	if override.Blobs != nil {
		p.Blobs = override.Blobs
	}
	c, err := New(p)
	require.NoError(t, err)
	return c
}

func picture(w, h int, shade uint8) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: shade, G: uint8(x), B: uint8(y), A: 255})
		}
	}
	return img
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(Params{})
	require.Error(t, err)

	f := newFixture(t)
	_, err = New(Params{Session: f.session, Blobs: f.blobs, Memory: f.memory, Pointers: f.pointers, Metadata: f.metadata})
	require.Error(t, err, "max dimension must be set")

	for _, q := range []int{0, -1, 101} {
		_, err = New(Params{Session: f.session, Blobs: f.blobs, Memory: f.memory, Pointers: f.pointers, Metadata: f.metadata, MaxDimension: 64, Quality: q})
		assert.Error(t, err, "quality %d", q)
	}
	_, err = New(Params{Session: f.session, Blobs: f.blobs, Memory: f.memory, Pointers: f.pointers, Metadata: f.metadata, MaxDimension: 64, Quality: 100})
	assert.NoError(t, err)
}

func TestSaveThenLoadReturnsEncodedBytes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	img := picture(200, 100, 10)

	saved, err := f.cache.Save(ctx, img, "u1")
	require.NoError(t, err)

	var p imaging.JPEG
	want, err := p.Encode(p.Resize(img, 64), 80)
	require.NoError(t, err)
	assert.Equal(t, want, saved.Data)
	assert.Equal(t, int64(len(want)), saved.SizeBytes)
	assert.FileExists(t, saved.Path)

	loaded, err := f.cache.Load(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, want, loaded.Data)
	assert.Equal(t, 0, f.metadata.latestCalls(), "memory tier should answer")

	path, ok, err := f.pointers.Get(ctx, pointer.Key("u1"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, saved.Path, path)

	rows, err := metadataHistory(ctx, f.store, "u1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, saved.Path, rows[0].ImagePath)
	assert.Equal(t, saved.SizeBytes, rows[0].ImageSizeBytes)
}

func TestSaveNeverOverwritesAndAppendsMetadata(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	first, err := f.cache.Save(ctx, picture(32, 32, 1), "u1")
	require.NoError(t, err)
	second, err := f.cache.Save(ctx, picture(32, 32, 200), "u1")
	require.NoError(t, err)

	assert.NotEqual(t, first.Path, second.Path)
	assert.FileExists(t, first.Path)
	assert.FileExists(t, second.Path)

	rows, err := metadataHistory(ctx, f.store, "u1")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, second.Path, rows[0].ImagePath)
}

func TestUnauthenticatedSaveWritesNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.session.set("")

	art, err := f.cache.Save(ctx, picture(32, 32, 1), "u1")
	require.Error(t, err)
	assert.Nil(t, art)
	assert.True(t, IsUnauthorized(err))

	names, err := f.blobs.List()
	require.NoError(t, err)
	assert.Empty(t, names)
	_, ok, _ := f.pointers.Get(ctx, pointer.Key("u1"))
	assert.False(t, ok)
	rows, err := metadataHistory(ctx, f.store, "u1")
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.Equal(t, 0, f.memory.Len())
}

func TestUnauthenticatedLoadReturnsNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.cache.Save(ctx, picture(32, 32, 1), "u1")
	require.NoError(t, err)

	f.session.set("")
	art, err := f.cache.Load(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, art)
}

func TestLoadMissIsNotAnError(t *testing.T) {
	f := newFixture(t)
	art, err := f.cache.Load(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Nil(t, art)
}

func TestLoadRepairsMemoryAndPointerFromMetadata(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	saved, err := f.cache.Save(ctx, picture(80, 40, 9), "u1")
	require.NoError(t, err)

	f.rebuild(t)

	art, err := f.cache.Load(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, art)
	assert.Equal(t, saved.Data, art.Data)
	assert.Equal(t, 1, f.metadata.latestCalls())

	path, ok, err := f.pointers.Get(ctx, pointer.Key("u1"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, saved.Path, path)
	assert.Equal(t, 1, f.memory.Len())

	f.cache.Invalidate("u1")
	again, err := f.cache.Load(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, again)
	assert.Equal(t, 1, f.metadata.latestCalls(), "second load should stop at the pointer tier")
}

func TestStaleMetadataFallsBackToScanAndHeals(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	older, err := f.cache.Save(ctx, picture(32, 32, 1), "u1")
	require.NoError(t, err)
	newer, err := f.cache.Save(ctx, picture(32, 32, 2), "u1")
	require.NoError(t, err)
	require.NoError(t, os.Remove(newer.Path))

	f.rebuild(t)
	require.NoError(t, f.pointers.Set(ctx, pointer.Key("u1"), newer.Path))

	art, err := f.cache.Load(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, art)
	assert.Equal(t, older.Path, art.Path)
	assert.Equal(t, older.Data, art.Data)

	path, ok, err := f.pointers.Get(ctx, pointer.Key("u1"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, older.Path, path)

	latest, err := NewMetadataRepository(f.store).Latest(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, older.Path, latest.ImagePath)

	calls := f.metadata.latestCalls()
	f.cache.Invalidate("u1")
	again, err := f.cache.Load(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, again)
	assert.Equal(t, older.Path, again.Path)
	assert.Equal(t, calls, f.metadata.latestCalls(), "healed pointer should answer")
}

func TestScanPicksGreatestPathString(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.blobs.Write("profile_u1_999.000000.jpg", []byte("older-by-string"))
	require.NoError(t, err)
	_, err = f.blobs.Write("profile_u1_1000.000000.jpg", []byte("newer-by-time"))
	require.NoError(t, err)
	_, err = f.blobs.Write("profile_u2_5000.000000.jpg", []byte("someone else"))
	require.NoError(t, err)

	art, err := f.cache.Load(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, art)
	assert.Equal(t, f.blobs.Path("profile_u1_999.000000.jpg"), art.Path)
	assert.Equal(t, []byte("older-by-string"), art.Data)
}

func TestPointerBackendFailureFallsThrough(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	saved, err := f.cache.Save(ctx, picture(16, 16, 3), "u1")
	require.NoError(t, err)

	memory, err := memcache.New[string, *Artifact](1)
	require.NoError(t, err)
	f.memory = memory
	c := f.build(t, Params{Pointers: failingPointers{}})

	art, err := c.Load(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, art)
	assert.Equal(t, saved.Path, art.Path)
}

func TestUnreadableFileIsLoadFailed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.cache.Save(ctx, picture(16, 16, 3), "u1")
	require.NoError(t, err)

	f.rebuild(t)
	c := f.build(t, Params{Blobs: unreadableBlobs{f.blobs}})

	art, err := c.Load(ctx, "u1")
	require.Error(t, err)
	assert.Nil(t, art)
	assert.True(t, IsLoadFailed(err))
}

func TestCompressionFailureWritesNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	c := f.build(t, Params{Imaging: brokenEncoder{}})

	_, err := c.Save(ctx, picture(16, 16, 3), "u1")
	require.Error(t, err)
	assert.True(t, IsCompressionFailed(err))

	names, err := f.blobs.List()
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestSaveSurfacesMetadataFailureAndLoadTolerates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.metadata.recordErr = errors.New("disk full")

	_, err := f.cache.Save(ctx, picture(16, 16, 3), "u1")
	require.Error(t, err)

	names, err := f.blobs.List()
	require.NoError(t, err)
	require.Len(t, names, 1, "blob write is not rolled back")

	f.metadata.recordErr = nil
	f.rebuild(t)
	art, err := f.cache.Load(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, art)
	assert.Equal(t, f.blobs.Path(names[0]), art.Path)
}

func TestConcurrentLoadsAgree(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	saved, err := f.cache.Save(ctx, picture(16, 16, 3), "u1")
	require.NoError(t, err)
	f.rebuild(t)

	var wg sync.WaitGroup
	results := make([]*Artifact, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			art, err := f.cache.Load(ctx, "u1")
			assert.NoError(t, err)
			results[i] = art
		}(i)
	}
	wg.Wait()
	for _, art := range results {
		require.NotNil(t, art)
		assert.Equal(t, saved.Data, art.Data)
	}
}

func TestMemoryCapacityOneEvictsOtherUser(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.cache.Save(ctx, picture(16, 16, 3), "u1")
	require.NoError(t, err)
	_, err = f.cache.Save(ctx, picture(16, 16, 4), "u2")
	require.NoError(t, err)

	_, ok := f.memory.Get("u1")
	assert.False(t, ok)

	art, err := f.cache.Load(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, art)
	assert.Equal(t, 0, f.metadata.latestCalls(), "pointer tier should answer")
}

func TestBlobName(t *testing.T) {
	at := time.Unix(1_712_345_678, 123_456_000)
	assert.Equal(t, "profile_u1_1712345678.123456.jpg", blobName("u1", at))
}

func metadataHistory(ctx context.Context, store *entitystore.Store, userID string) ([]models.ImageMetadata, error) {
	return entitystore.Fetch[models.ImageMetadata](ctx, store,
		entitystore.Where("user_id = ?", userID),
		entitystore.SortBy("last_updated", true),
	)
}
