package models

// Frequencies holds per-number occurrence counts over a window of draws
type Frequencies struct {
	Main       map[int]int `json:"main"`
	Powerball  map[int]int `json:"powerball"`
	SampleSize int         `json:"sample_size"`
	Window     int         `json:"window,omitempty"`
}

// NewFrequencies returns zero-filled tables for every possible number
func NewFrequencies() *Frequencies {
	f := &Frequencies{
		Main:      make(map[int]int, MainNumberMax),
		Powerball: make(map[int]int, PowerballMax),
	}
	for n := MainNumberMin; n <= MainNumberMax; n++ {
		f.Main[n] = 0
	}
	for n := PowerballMin; n <= PowerballMax; n++ {
		f.Powerball[n] = 0
	}
	return f
}

// Add counts one draw. Out of range values are ignored.
func (f *Frequencies) Add(d *Draw) {
	for _, n := range d.MainNumbers {
		if n >= MainNumberMin && n <= MainNumberMax {
			f.Main[n]++
		}
	}
	if d.Powerball >= PowerballMin && d.Powerball <= PowerballMax {
		f.Powerball[d.Powerball]++
	}
	f.SampleSize++
}

// MainTotal sums the main number counts
func (f *Frequencies) MainTotal() int {
	total := 0
	for _, c := range f.Main {
		total += c
	}
	return total
}

// PowerballTotal sums the powerball counts
func (f *Frequencies) PowerballTotal() int {
	total := 0
	for _, c := range f.Powerball {
		total += c
	}
	return total
}
