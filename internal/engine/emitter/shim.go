package emitter

const (
	prologue = "(function () {\n"
	epilogue = "})();\n"
)

// shim is the module registry every bundle starts with.
const shim = `"use strict";
var __knit = (function () {
  var registry = Object.create(null);
  function define(target, name, get) {
    Object.defineProperty(target, name, { enumerable: true, get: get });
  }
  return {
    module: function (key, factory) {
      var exports = Object.create(null);
      factory(exports);
      registry[key] = exports;
    },
    import: function (key) {
      var exports = registry[key];
      if (exports === undefined) {
        throw new Error("knit: module " + key + " is not initialised");
      }
      return exports;
    },
    exports: function (target, getters) {
      Object.keys(getters).forEach(function (name) {
        define(target, name, getters[name]);
      });
    },
    reexport: function (target, source) {
      Object.keys(source).forEach(function (name) {
        if (name === "default" || Object.prototype.hasOwnProperty.call(target, name)) {
          return;
        }
        define(target, name, function () { return source[name]; });
      });
    }
  };
})();
`
