package util

import "strconv"

const DefaultPageSize = 5

func Calculate(page, size int) (from, limit int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = DefaultPageSize
	}
	from = (page - 1) * size
	return from, size
}

// ParsePage reads page and pageSize query values, falling back to the
// defaults on anything that is not a positive integer.
func ParsePage(pageRaw, sizeRaw string) (page, size int) {
	page, err := strconv.Atoi(pageRaw)
	if err != nil || page < 1 {
		page = 1
	}
	size, err = strconv.Atoi(sizeRaw)
	if err != nil || size < 1 {
		size = DefaultPageSize
	}
	return page, size
}
