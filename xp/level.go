// Copyright 2025 vycdev.
//
//  Licensed under the Apache License, Version 2.0 (the "License");
//  you may not use this file except in compliance with the License.
//  You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
//  Unless required by applicable law or agreed to in writing, software
//  distributed under the License is distributed on an "AS IS" BASIS,
//  WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//  See the License for the specific language governing permissions and
//  limitations under the License.

package xp

import "math"

const levelExp = 5.0243

// Level returns the level reached at totalXP. The level column is
// always derivable from the XP column through this function; it is
// never stored independently.
//
// The curve is the inverse of ForLevel: level 1 starts at 999 XP and
// thresholds grow roughly with the fifth power of the level.
func Level(totalXP int64) int {
	v := (float64(totalXP) + 111) / 111
	if v <= 0 {
		return 0
	}
	return int(math.Pow(math.Log10(v), levelExp))
}

// ForLevel returns the total XP at which level begins.
func ForLevel(level int) int64 {
	if level <= 0 {
		return 0
	}
	return int64(111*math.Pow(10, math.Pow(float64(level), 1/levelExp)) - 111)
}
