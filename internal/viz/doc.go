// Package viz renders simulation output in the terminal.
//
//   - [ZSpectrumPlot] and [MTRAsymPlot]: asciigraph line plots, positive
//     offsets on the left as is usual for Z-spectra
//   - [SeriesPlot]: any per readout series, e.g. water Mz
//   - [Summary]: a lipgloss panel of key/value rows
//
// Colors follow [Current]; [UseTheme] switches it, and "mono" disables
// color for piped output.
package viz
