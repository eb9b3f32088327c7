/*
	Research
	Copyright (c) 2024 The Research Authors

	This program is free software: you can redistribute it and/or modify
	it under the terms of the GNU Affero General Public License as published
	by the Free Software Foundation, either version 3 of the License, or
	(at your option) any later version.

	This program is distributed in the hope that it will be useful,
	but WITHOUT ANY WARRANTY; without even the implied warranty of
	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
	GNU Affero General Public License for more details.

	You should have received a copy of the GNU Affero General Public License
	along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

package research

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"
)

// ExportRaindropCSV writes all items to w as CSV in the column
// layout raindrop.io accepts for imports. Tags are comma-joined
// inside one field; created is RFC 3339 UTC.
func (l *Library) ExportRaindropCSV(ctx context.Context, w io.Writer) (int, error) {
	tagged, err := l.ItemsWithTags(ctx)
	if err != nil {
		return 0, err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"url", "folder", "title", "description", "tags", "created"}); err != nil {
		return 0, fmt.Errorf("writing CSV header: %w", err)
	}

	var count int
	for _, ti := range tagged {
		record := []string{
			ti.Item.URI,
			"research",
			ti.Item.Title,
			ti.Item.Excerpt,
			strings.Join(TagNames(ti.Tags), ","),
			ti.Item.Added().Format(time.RFC3339),
		}
		if err := cw.Write(record); err != nil {
			return count, fmt.Errorf("writing CSV record for %q: %w", ti.Item.URI, err)
		}
		count++
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return count, fmt.Errorf("flushing CSV: %w", err)
	}
	return count, nil
}
