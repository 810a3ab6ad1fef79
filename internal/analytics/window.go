package analytics

import "math"

// WindowSize сколько последних задержек учитывается в скользящей статистике
const WindowSize = 50

// SlidingWindow кольцевой буфер значений с накопленными суммой и суммой квадратов
type SlidingWindow struct {
	values []float64
	next   int
	count  int
	sum    float64
	sumSq  float64
}

// NewSlidingWindow создает окно на size значений
func NewSlidingWindow(size int) *SlidingWindow {
	if size <= 0 {
		size = WindowSize
	}
	return &SlidingWindow{values: make([]float64, size)}
}

// Add добавляет значение, вытесняя самое старое при заполненном окне
func (w *SlidingWindow) Add(v float64) {
	if w.count == len(w.values) {
		old := w.values[w.next]
		w.sum -= old
		w.sumSq -= old * old
	} else {
		w.count++
	}
	w.values[w.next] = v
	w.sum += v
	w.sumSq += v * v
	w.next = (w.next + 1) % len(w.values)
}

// Mean скользящее среднее
func (w *SlidingWindow) Mean() float64 {
	if w.count == 0 {
		return 0
	}
	return w.sum / float64(w.count)
}

// StdDev выборочное стандартное отклонение
func (w *SlidingWindow) StdDev() float64 {
	if w.count < 2 {
		return 0
	}
	n := float64(w.count)
	variance := (w.sumSq - w.sum*w.sum/n) / (n - 1)
	if variance < 0 {
		variance = 0
	}
	return math.Sqrt(variance)
}

// Count количество значений в окне
func (w *SlidingWindow) Count() int {
	return w.count
}
