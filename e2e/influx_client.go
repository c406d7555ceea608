//go:build e2e

package e2e

import (
	"context"
	"fmt"
	"sort"
	"strings"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
)

// influxProbe reads back the points the dispatch sinks wrote.
type influxProbe struct {
	org    string
	bucket string
	client influxdb2.Client
	query  api.QueryAPI
}

func newInfluxProbe(url, org, bucket, token string) *influxProbe {
	c := influxdb2.NewClient(url, token)
	return &influxProbe{org: org, bucket: bucket, client: c, query: c.QueryAPI(org)}
}

// ensureBucket creates the organisation and bucket when missing.
func (p *influxProbe) ensureBucket(ctx context.Context) error {
	orgAPI := p.client.OrganizationsAPI()
	org, err := orgAPI.FindOrganizationByName(ctx, p.org)
	if err != nil || org == nil {
		org, err = orgAPI.CreateOrganizationWithName(ctx, p.org)
		if err != nil {
			return fmt.Errorf("create org: %w", err)
		}
	}
	bucketAPI := p.client.BucketsAPI()
	if b, err := bucketAPI.FindBucketByName(ctx, p.bucket); err == nil && b != nil {
		return nil
	}
	if _, err := bucketAPI.CreateBucketWithName(ctx, org, p.bucket); err != nil {
		return fmt.Errorf("create bucket: %w", err)
	}
	return nil
}

// count returns how many values of field were written for measurement with
// the given tags over the last hour.
func (p *influxProbe) count(ctx context.Context, measurement, field string, tags map[string]string) (int, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "from(bucket:%q) |> range(start: -1h)", p.bucket)
	fmt.Fprintf(&b, " |> filter(fn: (r) => r._measurement == %q and r._field == %q)", measurement, field)
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " |> filter(fn: (r) => r[%q] == %q)", k, tags[k])
	}
	res, err := p.query.Query(ctx, b.String())
	if err != nil {
		return 0, err
	}
	defer res.Close()
	n := 0
	for res.Next() {
		n++
	}
	return n, res.Err()
}

func (p *influxProbe) Close() { p.client.Close() }
