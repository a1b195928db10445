package worker_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/absmach/flround/worker"
	"github.com/opencontainers/go-digest"
	"github.com/opencontainers/image-spec/specs-go"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const repoName = "flround/compute"

// registry serves one tagged manifest and its blobs over the OCI
// distribution API.
func registry(t *testing.T, tag string, layers map[string][]byte) *httptest.Server {
	t.Helper()

	blobs := map[digest.Digest][]byte{}
	manifest := ocispec.Manifest{
		Versioned: specs.Versioned{SchemaVersion: 2},
		MediaType: ocispec.MediaTypeImageManifest,
		Config:    ocispec.DescriptorEmptyJSON,
	}
	for mediaType, data := range layers {
		d := digest.FromBytes(data)
		blobs[d] = data
		manifest.Layers = append(manifest.Layers, ocispec.Descriptor{
			MediaType: mediaType,
			Digest:    d,
			Size:      int64(len(data)),
		})
	}
	manifestData, err := json.Marshal(manifest)
	require.NoError(t, err)
	manifestDigest := digest.FromBytes(manifestData)

	prefix := "/v2/" + repoName + "/"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, prefix)
		switch {
		case path == "manifests/"+tag || path == "manifests/"+manifestDigest.String():
			w.Header().Set("Content-Type", ocispec.MediaTypeImageManifest)
			w.Header().Set("Docker-Content-Digest", manifestDigest.String())
			w.Header().Set("Content-Length", strconv.Itoa(len(manifestData)))
			w.WriteHeader(http.StatusOK)
			if r.Method == http.MethodGet {
				_, _ = w.Write(manifestData)
			}
		case strings.HasPrefix(path, "blobs/"):
			data, ok := blobs[digest.Digest(strings.TrimPrefix(path, "blobs/"))]
			if !ok {
				http.NotFound(w, r)

				return
			}
			w.Header().Set("Content-Type", "application/octet-stream")
			w.Header().Set("Content-Length", strconv.Itoa(len(data)))
			w.WriteHeader(http.StatusOK)
			if r.Method == http.MethodGet {
				_, _ = w.Write(data)
			}
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	return srv
}

func reference(srv *httptest.Server, tag string) string {
	return strings.TrimPrefix(srv.URL, "http://") + "/" + repoName + ":" + tag
}

func TestFetchModule(t *testing.T) {
	cfg := worker.RegistryConfig{PlainHTTP: true}

	cases := []struct {
		desc   string
		layers map[string][]byte
		tag    string
		ref    string
		want   []byte
		err    bool
	}{
		{
			desc:   "fetch wasm layer",
			layers: map[string][]byte{worker.WasmLayerMediaType: doublingModule},
			tag:    "v1",
			want:   doublingModule,
		},
		{
			desc: "prefer wasm layer over larger layers",
			layers: map[string][]byte{
				worker.WasmLayerMediaType:   emptyModule,
				"application/octet-stream": doublingModule,
			},
			tag:  "v1",
			want: emptyModule,
		},
		{
			desc:   "fall back to largest layer",
			layers: map[string][]byte{"application/octet-stream": doublingModule},
			tag:    "latest",
			want:   doublingModule,
		},
		{
			desc:   "manifest without layers",
			layers: map[string][]byte{},
			tag:    "v1",
			err:    true,
		},
		{
			desc:   "unknown tag",
			layers: map[string][]byte{worker.WasmLayerMediaType: doublingModule},
			tag:    "v1",
			ref:    "v2",
			err:    true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			srv := registry(t, tc.tag, tc.layers)
			ref := tc.ref
			if ref == "" {
				ref = tc.tag
			}

			data, err := worker.FetchModule(context.Background(), cfg, reference(srv, ref), logger)
			if tc.err {
				assert.Error(t, err)

				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, data)
		})
	}
}

func TestFetchModuleInvalidReference(t *testing.T) {
	_, err := worker.FetchModule(context.Background(), worker.RegistryConfig{}, "not a reference", logger)
	assert.Error(t, err)
}

func TestRegistryConfigValidate(t *testing.T) {
	cases := []struct {
		desc string
		cfg  worker.RegistryConfig
		err  bool
	}{
		{desc: "anonymous", cfg: worker.RegistryConfig{}},
		{desc: "token", cfg: worker.RegistryConfig{Authenticate: true, Token: "pat"}},
		{desc: "username and password", cfg: worker.RegistryConfig{Authenticate: true, Username: "u", Password: "p"}},
		{desc: "username only", cfg: worker.RegistryConfig{Authenticate: true, Username: "u"}, err: true},
		{desc: "no credentials", cfg: worker.RegistryConfig{Authenticate: true}, err: true},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.err {
				assert.Error(t, err)

				return
			}
			assert.NoError(t, err)
		})
	}
}
