package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"oras.land/oras-go/v2/registry/remote"
	"oras.land/oras-go/v2/registry/remote/auth"
	"oras.land/oras-go/v2/registry/remote/retry"
)

const (
	defaultTag = "latest"
	// WasmLayerMediaType is the layer type pushed by wasm-to-oci.
	WasmLayerMediaType = "application/vnd.wasm.content.layer.v1+wasm"

	maxModuleSize = 100 * 1024 * 1024
)

var errNoLayer = errors.New("no valid layers found in manifest")

type RegistryConfig struct {
	Authenticate bool   `env:"AUTHENTICATE" envDefault:"false"`
	Token        string `env:"PAT"          envDefault:""`
	Username     string `env:"USERNAME"     envDefault:""`
	Password     string `env:"PASSWORD"     envDefault:""`
	PlainHTTP    bool   `env:"PLAIN_HTTP"   envDefault:"false"`
}

func (c RegistryConfig) Validate() error {
	if !c.Authenticate {
		return nil
	}
	if c.Token == "" && (c.Username == "" || c.Password == "") {
		return errors.New("either PAT or username/password must be provided when authentication is enabled")
	}

	return nil
}

// FetchModule pulls the Wasm compute module referenced by ref, for example
// localhost:5000/flround/fibonacci:v1, from an OCI registry.
func FetchModule(ctx context.Context, cfg RegistryConfig, ref string, logger *slog.Logger) ([]byte, error) {
	repo, err := remote.NewRepository(ref)
	if err != nil {
		return nil, fmt.Errorf("failed to create repository for %s: %w", ref, err)
	}
	repo.PlainHTTP = cfg.PlainHTTP
	setupAuthentication(repo, cfg)

	manifest, err := fetchManifest(ctx, repo, ref)
	if err != nil {
		return nil, err
	}

	layer, err := findModuleLayer(manifest)
	if err != nil {
		return nil, fmt.Errorf("failed to find layer for %s: %w", ref, err)
	}
	if layer.Size > maxModuleSize {
		return nil, fmt.Errorf("module %s is %d bytes, above the %d byte limit", ref, layer.Size, maxModuleSize)
	}

	logger.Info("Fetching Wasm module",
		slog.String("reference", ref),
		slog.String("digest", layer.Digest.String()),
		slog.Int64("size", layer.Size),
	)

	reader, err := repo.Fetch(ctx, layer)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch layer for %s: %w", ref, err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read layer for %s: %w", ref, err)
	}

	return data, nil
}

func setupAuthentication(repo *remote.Repository, cfg RegistryConfig) {
	if !cfg.Authenticate {
		return
	}

	var cred auth.Credential
	if cfg.Username != "" && cfg.Password != "" {
		cred = auth.Credential{
			Username: cfg.Username,
			Password: cfg.Password,
		}
	} else if cfg.Token != "" {
		cred = auth.Credential{
			AccessToken: cfg.Token,
		}
	}

	repo.Client = &auth.Client{
		Client:     retry.DefaultClient,
		Cache:      auth.NewCache(),
		Credential: auth.StaticCredential(repo.Reference.Registry, cred),
	}
}

func fetchManifest(ctx context.Context, repo *remote.Repository, ref string) (*ocispec.Manifest, error) {
	tag := repo.Reference.Reference
	if tag == "" {
		tag = defaultTag
	}

	descriptor, err := repo.Resolve(ctx, tag)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve manifest for %s: %w", ref, err)
	}

	reader, err := repo.Fetch(ctx, descriptor)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch manifest for %s: %w", ref, err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest for %s: %w", ref, err)
	}

	var manifest ocispec.Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to parse manifest for %s: %w", ref, err)
	}

	return &manifest, nil
}

// findModuleLayer prefers a Wasm layer and otherwise takes the largest one.
func findModuleLayer(manifest *ocispec.Manifest) (ocispec.Descriptor, error) {
	var largest ocispec.Descriptor
	for _, layer := range manifest.Layers {
		if layer.MediaType == WasmLayerMediaType && layer.Size > 0 {
			return layer, nil
		}
		if layer.Size > largest.Size {
			largest = layer
		}
	}

	if largest.Size == 0 {
		return ocispec.Descriptor{}, errNoLayer
	}

	return largest, nil
}
