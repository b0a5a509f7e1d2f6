package image

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	rh "github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"

	"github.com/fnothaft/cgcloud/internal/common"
)

const DefaultUbuntuBaseURL = "http://cloud-images.ubuntu.com"

// Column order of the released.current.txt query files.
var ubuntuCatalogFields = []string{
	"release", "purpose", "release_type", "release_date",
	"storage_type", "arch", "region", "ami_id", "aki_id",
	"dont_know", "hypervisor",
}

// Catalog lists candidate images. Implementations may narrow the list using
// query but callers still filter the result themselves.
type Catalog interface {
	Candidates(ctx context.Context, query Query) ([]Candidate, error)
}

// UbuntuCatalog reads Canonical's tab separated cloud image query files.
type UbuntuCatalog struct {
	BaseURL string
	client  *rh.Client
}

func NewUbuntuCatalog(baseURL string) *UbuntuCatalog {
	if baseURL == "" {
		baseURL = DefaultUbuntuBaseURL
	}
	client := rh.NewClient()
	client.Logger = common.NewRHLeveledLogger(logrus.StandardLogger())
	client.RetryMax = 3
	return &UbuntuCatalog{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		client:  client,
	}
}

func (u *UbuntuCatalog) url(release string) string {
	return fmt.Sprintf("%s/query/%s/server/released.current.txt", u.BaseURL, release)
}

// Candidates returns every image of query.Release.
func (u *UbuntuCatalog) Candidates(ctx context.Context, query Query) ([]Candidate, error) {
	if query.Release == "" {
		return nil, errors.New("the Ubuntu image catalog needs a release")
	}
	release := query.Release
	req, err := rh.NewRequestWithContext(ctx, http.MethodGet, u.url(release), nil)
	if err != nil {
		return nil, err
	}
	resp, err := u.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cannot fetch the Ubuntu image catalog: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("cannot fetch the Ubuntu image catalog %s: %s", u.url(release), resp.Status)
	}
	return ParseUbuntuCatalog(resp.Body)
}

// ParseUbuntuCatalog decodes a released.current.txt body.
func ParseUbuntuCatalog(r io.Reader) ([]Candidate, error) {
	reader := csv.NewReader(r)
	reader.Comma = '\t'
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var candidates []Candidate
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("cannot parse the Ubuntu image catalog: %w", err)
		}
		row := make(map[string]string, len(ubuntuCatalogFields))
		for i, name := range ubuntuCatalogFields {
			if i < len(record) {
				row[name] = record[i]
			}
		}
		candidates = append(candidates, Candidate{
			Family:       Ubuntu,
			Release:      row["release"],
			Purpose:      row["purpose"],
			ReleaseType:  row["release_type"],
			ReleaseDate:  row["release_date"],
			StorageType:  row["storage_type"],
			Architecture: row["arch"],
			Region:       row["region"],
			ImageID:      row["ami_id"],
			KernelID:     row["aki_id"],
			Hypervisor:   row["hypervisor"],
		})
	}
	return candidates, nil
}
