package wlproto

// ShmFormat mirrors wl_shm's pixel format enum. keyveil only ever
// requests Argb8888 (spec.md §6 "Pixel format"), which every
// compositor is required to support.
type ShmFormat uint32

const ShmFormatArgb8888 ShmFormat = 0
