package main

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
)

const pageSize = 20

type fixtureMovie struct {
	ID            int64    `json:"id"`
	Title         string   `json:"title"`
	OriginalTitle string   `json:"original_title"`
	Overview      string   `json:"overview"`
	PosterPath    *string  `json:"poster_path"`
	ReleaseDate   string   `json:"release_date"`
	VoteAverage   float64  `json:"vote_average"`
	Popularity    float64  `json:"popularity"`
	Runtime       int      `json:"runtime"`
	Genres        []string `json:"genres"`
	Countries     []string `json:"countries"`
}

type dailyRow struct {
	Rank    string `json:"rank"`
	MovieNm string `json:"movieNm"`
	OpenDt  string `json:"openDt"`
}

type fixtures struct {
	Movies []fixtureMovie     `json:"movies"`
	Lists  map[string][]int64 `json:"lists"`
	Daily  []dailyRow         `json:"daily"`
}

type named struct {
	Name string `json:"name"`
}

type country struct {
	ISO string `json:"iso_3166_1"`
}

type resultJSON struct {
	ID            int64   `json:"id"`
	Title         string  `json:"title"`
	OriginalTitle string  `json:"original_title"`
	Overview      string  `json:"overview"`
	PosterPath    *string `json:"poster_path"`
	ReleaseDate   string  `json:"release_date"`
	VoteAverage   float64 `json:"vote_average"`
	Popularity    float64 `json:"popularity"`
}

type detailJSON struct {
	resultJSON
	Runtime             int       `json:"runtime"`
	Genres              []named   `json:"genres"`
	ProductionCountries []country `json:"production_countries"`
}

type pageJSON struct {
	Page         int          `json:"page"`
	Results      []resultJSON `json:"results"`
	TotalPages   int          `json:"total_pages"`
	TotalResults int          `json:"total_results"`
}

func newMux(fx fixtures, apiKey string) *http.ServeMux {
	byID := make(map[int64]fixtureMovie, len(fx.Movies))
	for _, m := range fx.Movies {
		byID[m.ID] = m
	}
	results := func(ids []int64) []resultJSON {
		out := make([]resultJSON, 0, len(ids))
		for _, id := range ids {
			if m, ok := byID[id]; ok {
				out = append(out, m.result())
			}
		}
		return out
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /3/movie/{id}", func(w http.ResponseWriter, r *http.Request) {
		if !authorized(w, r.URL.Query().Get("api_key"), apiKey) {
			return
		}
		raw := r.PathValue("id")
		if ids, ok := fx.Lists[raw]; ok {
			writeJSON(w, paginate(results(ids), r.URL.Query().Get("page")))
			return
		}
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			http.NotFound(w, r)
			return
		}
		m, ok := byID[id]
		if !ok {
			writeJSONStatus(w, http.StatusNotFound, map[string]any{"status_code": 34, "status_message": "The resource you requested could not be found."})
			return
		}
		writeJSON(w, m.detail())
	})
	mux.HandleFunc("GET /3/search/movie", func(w http.ResponseWriter, r *http.Request) {
		if !authorized(w, r.URL.Query().Get("api_key"), apiKey) {
			return
		}
		query := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("query")))
		matched := make([]resultJSON, 0)
		for _, m := range fx.Movies {
			if query != "" && (strings.Contains(strings.ToLower(m.Title), query) || strings.Contains(strings.ToLower(m.OriginalTitle), query)) {
				matched = append(matched, m.result())
			}
		}
		writeJSON(w, paginate(matched, r.URL.Query().Get("page")))
	})
	mux.HandleFunc("GET /boxoffice/searchDailyBoxOfficeList.json", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if apiKey != "" && q.Get("key") != apiKey {
			writeJSON(w, map[string]any{"faultInfo": map[string]string{"message": "유효하지않은 키값입니다.", "errorCode": "320010"}})
			return
		}
		target := q.Get("targetDt")
		if len(target) != 8 {
			writeJSON(w, map[string]any{"faultInfo": map[string]string{"message": "targetDt must be yyyyMMdd", "errorCode": "320011"}})
			return
		}
		writeJSON(w, map[string]any{"boxOfficeResult": map[string]any{
			"boxofficeType":      "일별 박스오피스",
			"showRange":          target + "~" + target,
			"dailyBoxOfficeList": fx.Daily,
		}})
	})
	return mux
}

func (m fixtureMovie) result() resultJSON {
	return resultJSON{
		ID:            m.ID,
		Title:         m.Title,
		OriginalTitle: m.OriginalTitle,
		Overview:      m.Overview,
		PosterPath:    m.PosterPath,
		ReleaseDate:   m.ReleaseDate,
		VoteAverage:   m.VoteAverage,
		Popularity:    m.Popularity,
	}
}

func (m fixtureMovie) detail() detailJSON {
	d := detailJSON{resultJSON: m.result(), Runtime: m.Runtime}
	for _, g := range m.Genres {
		d.Genres = append(d.Genres, named{Name: g})
	}
	for _, c := range m.Countries {
		d.ProductionCountries = append(d.ProductionCountries, country{ISO: c})
	}
	return d
}

func paginate(all []resultJSON, rawPage string) pageJSON {
	page, err := strconv.Atoi(rawPage)
	if err != nil || page < 1 {
		page = 1
	}
	totalPages := max((len(all)+pageSize-1)/pageSize, 1)
	start := min((page-1)*pageSize, len(all))
	end := min(start+pageSize, len(all))
	return pageJSON{Page: page, Results: all[start:end], TotalPages: totalPages, TotalResults: len(all)}
}

func authorized(w http.ResponseWriter, got, want string) bool {
	if want == "" || got == want {
		return true
	}
	writeJSONStatus(w, http.StatusUnauthorized, map[string]any{"status_code": 7, "status_message": "Invalid API key: You must be granted a valid key."})
	return false
}

func writeJSON(w http.ResponseWriter, payload any) {
	writeJSONStatus(w, http.StatusOK, payload)
}

func writeJSONStatus(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
