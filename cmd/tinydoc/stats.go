package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/pingcap-incubator/tinydoc/kv/collection"
	"github.com/pingcap/errors"
	"github.com/prometheus/client_golang/prometheus"
)

func printStats(w io.Writer, c *collection.Collection) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PARTITION\tPKS\tATTRIBUTES\tPRICES\tFACETS\tHIERARCHY\tLOCALES")
	for _, key := range c.Keys() {
		s, ok := c.Stats(key)
		if !ok {
			continue
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%d\t%d\n", key, s.PrimaryKeys, s.AttributeEntries,
			s.PriceEntries, s.FacetEntries, s.HierarchyEntries, s.Locales)
	}
	tw.Flush()
	fmt.Fprintf(w, "pending parts: %d\n", c.Pending())
}

// printMetrics writes the counters and gauges of one collection in the text exposition style.
func printMetrics(w io.Writer, collectionName string) error {
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		return errors.WithStack(err)
	}
	for _, f := range families {
		if !strings.HasPrefix(f.GetName(), "tinydoc_") {
			continue
		}
	metrics:
		for _, m := range f.GetMetric() {
			labels := make([]string, 0, len(m.GetLabel()))
			for _, l := range m.GetLabel() {
				if l.GetName() == "collection" {
					if l.GetValue() != collectionName {
						continue metrics
					}
					continue
				}
				labels = append(labels, fmt.Sprintf("%s=%q", l.GetName(), l.GetValue()))
			}
			name := f.GetName() + "{" + strings.Join(labels, ",") + "}"
			switch {
			case m.GetCounter() != nil:
				fmt.Fprintf(w, "%s %v\n", name, m.GetCounter().GetValue())
			case m.GetGauge() != nil:
				fmt.Fprintf(w, "%s %v\n", name, m.GetGauge().GetValue())
			case m.GetHistogram() != nil:
				fmt.Fprintf(w, "%s count=%d sum=%v\n", name, m.GetHistogram().GetSampleCount(), m.GetHistogram().GetSampleSum())
			}
		}
	}
	return nil
}
